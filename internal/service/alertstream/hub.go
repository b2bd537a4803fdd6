// Package alertstream pushes real-time anomaly alerts to WebSocket subscribers.
package alertstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/models"
	applogger "LoadCast/pkg/logger"
)

// Frame is the JSON message written to subscribers.
type Frame struct {
	Type string               `json:"type"`
	Data models.RealTimeAlert `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans alerts out to every connected subscriber. A subscriber whose send
// buffer is full is disconnected rather than blocking delivery.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	bufSize      int
	log          *applogger.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

type Option func(*Hub)

func WithLogger(l *applogger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		bufSize:      64,
		log:          applogger.Nop(),
		subs:         make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades the request and streams alerts until the peer goes away.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	s := &subscriber{conn: conn, send: make(chan []byte, h.bufSize)}
	if !h.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(h.writeWait))
		return conn.Close()
	}
	h.log.Debug("alert subscriber connected", applogger.String("remote", c.RealIP()))

	go h.writeLoop(s)
	h.readLoop(s)
	return nil
}

// Deliver broadcasts one alert. It never blocks on slow subscribers.
func (h *Hub) Deliver(_ context.Context, alert models.RealTimeAlert) error {
	b, err := json.Marshal(Frame{Type: "alert", Data: alert})
	if err != nil {
		return fmt.Errorf("encode alert frame: %w", err)
	}
	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		select {
		case s.send <- b:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range slow {
		h.log.Warn("dropping slow alert subscriber", applogger.String("remote", s.conn.RemoteAddr().String()))
		h.remove(s)
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.close()
	}
	return nil
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// readLoop discards inbound frames and keeps the read deadline fresh via pongs.
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)
	wait := 2 * h.pingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(wait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case b, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

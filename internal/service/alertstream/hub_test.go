package alertstream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

func startHub(t *testing.T, h *Hub) string {
	t.Helper()
	e := echo.New()
	e.GET("/ws/alerts", h.ServeWS)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
}

func TestHubBroadcastsAlerts(t *testing.T) {
	h := NewHub()
	url := startHub(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	alert := models.RealTimeAlert{CustomerID: "c9", AlertType: models.AlertTypeRealTime, ZScore: 4.2, Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, h.Deliver(t.Context(), alert))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "alert", f.Type)
	assert.Equal(t, "c9", f.Data.CustomerID)
	assert.InDelta(t, 4.2, f.Data.ZScore, 1e-12)
}

func TestHubDropsSubscriberOnDisconnect(t *testing.T) {
	h := NewHub()
	url := startHub(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub()
	url := startHub(t, h)
	require.NoError(t, h.Close())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Zero(t, h.Clients())
}

func TestDeliverWithoutSubscribers(t *testing.T) {
	assert.NoError(t, NewHub().Deliver(t.Context(), models.RealTimeAlert{CustomerID: "x"}))
}

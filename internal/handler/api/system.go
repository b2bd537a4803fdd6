package api

import (
	"context"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/capability"
	xhttp "LoadCast/pkg/http"
)

// HealthChecker is implemented by every infrastructure dependency worth probing.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Capabilities lists which optional backends were resolved at startup.
type Capabilities interface {
	Snapshot() map[string]bool
	Reason(name string) string
	AvailableKinds() []models.ModelKind
}

type capabilityView struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type capabilitiesResponse struct {
	Capabilities []capabilityView   `json:"capabilities"`
	Models       []models.ModelKind `json:"models"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// SystemHandler serves health, capability and alert-stream endpoints.
type SystemHandler struct {
	caps    Capabilities
	checks  map[string]HealthChecker
	stream  echo.HandlerFunc
	timeout time.Duration
}

// NewSystemHandler creates the handler. stream may be nil when alert push is disabled.
func NewSystemHandler(caps Capabilities, checks map[string]HealthChecker, stream echo.HandlerFunc) *SystemHandler {
	return &SystemHandler{caps: caps, checks: checks, stream: stream, timeout: 3 * time.Second}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/api/capabilities", h.Capabilities)
	if h.stream != nil {
		e.GET("/ws/alerts", h.stream)
	}
}

// Health probes every dependency. Any failure turns the response into 503.
func (h *SystemHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks)), Time: time.Now().UTC()}
	for name, chk := range h.checks {
		if chk == nil {
			continue
		}
		if err := chk.Health(ctx); err != nil {
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			continue
		}
		res.Checks[name] = "ok"
	}
	if res.Status != "ok" {
		return xhttp.UnavailableResponse(c, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SystemHandler) Capabilities(c echo.Context) error {
	snap := h.caps.Snapshot()
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return order(names[i]) < order(names[j]) })

	out := capabilitiesResponse{Models: h.caps.AvailableKinds()}
	for _, n := range names {
		out.Capabilities = append(out.Capabilities, capabilityView{Name: n, Available: snap[n], Reason: h.caps.Reason(n)})
	}
	return xhttp.SuccessResponse(c, out)
}

// order keeps known capabilities in declaration order and unknown ones last.
func order(name string) int {
	for i, n := range capability.Names() {
		if n == name {
			return i
		}
	}
	return len(capability.Names())
}

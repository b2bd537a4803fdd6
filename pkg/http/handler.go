package http

import "github.com/labstack/echo/v4"

// Handler is implemented by each API surface (forecast, anomaly, jobs,
// system). NewServer calls RegisterRoutes once per handler and skips nils.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

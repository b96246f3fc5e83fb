package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-realtime/internal/handler"
	"github.com/iliyamo/cinema-seat-realtime/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health   echo.HandlerFunc
	Seats    *handler.SeatHandler
	Bookings *handler.BookingHandler
	Admin    *handler.AdminHandler
	WS       *handler.WSHandler
}

// Register mounts every route.  limiter guards the seat mutating endpoints
// and may be nil.
func Register(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	RegisterPublic(e, h, jwtSecret)
	RegisterParty(e, h, jwtSecret, limiter)
	RegisterAdmin(e, h, jwtSecret)
}

// RegisterPublic registers routes that do not require authentication.
// Seat snapshots are public so guests can watch availability; the
// websocket accepts anonymous watchers, who may observe but not mutate.
func RegisterPublic(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", h.Health)
	e.GET("/v1/showings/:id/seats", h.Seats.Snapshot)
	e.GET("/v1/showings/:id/ws", h.WS.Serve, middleware.OptionalJWT(jwtSecret))
	e.GET("/v1/bookings/code/:code", h.Bookings.GetByCode)
}

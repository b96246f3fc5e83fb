package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-realtime/internal/middleware"
)

// RegisterParty registers the endpoints a signed-in party uses to hold,
// release and book seats and to manage its bookings.
func RegisterParty(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	g.POST("/showings/:id/seats/:label/select", h.Seats.Select, limiter)
	g.DELETE("/showings/:id/seats/:label/select", h.Seats.Deselect)
	g.POST("/showings/:id/bookings", h.Bookings.Finalize, limiter)

	g.GET("/my-bookings", h.Bookings.ListMine)
	g.PATCH("/bookings/:code/cancel", h.Bookings.Cancel)
}

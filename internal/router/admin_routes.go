package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-realtime/internal/middleware"
)

// RegisterAdmin registers maintenance endpoints.  They require a valid JWT
// with the ADMIN or OWNER role.
func RegisterAdmin(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOwner),
	)
	g.POST("/showings/:id/seats", h.Admin.SeedSeats)
	g.PUT("/showings/:id/seats/:label/status", h.Admin.SetSeatStatus)
	g.PUT("/showings/:id/status", h.Admin.SetShowingStatus)

	g.PATCH("/bookings/:code/confirm", h.Admin.ConfirmBooking)
	g.PATCH("/bookings/:code/complete", h.Admin.CompleteBooking)

	g.POST("/holds/sweep", h.Admin.Sweep)
}

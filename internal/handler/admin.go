package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-realtime/internal/model"
    "github.com/iliyamo/cinema-seat-realtime/internal/service"
)

// AdminHandler groups the administrative seat and booking operations.  All
// routes are guarded by RequireRole(ADMIN, OWNER).
type AdminHandler struct {
    Coord    *service.Coordinator
    Bookings *service.BookingManager
    Sweeper  *service.Sweeper
    Log      *zap.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(coord *service.Coordinator, bookings *service.BookingManager, sweeper *service.Sweeper, log *zap.Logger) *AdminHandler {
    if coord == nil || bookings == nil || sweeper == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AdminHandler{Coord: coord, Bookings: bookings, Sweeper: sweeper, Log: log}
}

// SeedSeats handles POST /v1/admin/showings/:id/seats.  The body is the
// layout to clone: rows, columns, per-row classes and the base price.
func (h *AdminHandler) SeedSeats(c echo.Context) error {
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    var layout model.Layout
    if err := c.Bind(&layout); err != nil {
        return badRequest(c, "invalid request body")
    }
    seats, err := h.Coord.SeedShowing(c.Request().Context(), showingID, layout)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"showing_id": showingID, "count": len(seats), "items": seats})
}

// SetSeatStatus handles PUT /v1/admin/showings/:id/seats/:label/status with
// body {"status": "blocked"|"available"}.
func (h *AdminHandler) SetSeatStatus(c echo.Context) error {
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    var body struct {
        Status model.SeatStatus `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    label := seatLabel(c.Param("label"))
    seat, err := h.Coord.SetStatus(c.Request().Context(), showingID, label, body.Status)
    if err != nil {
        return respondError(c, h.Log, err, label)
    }
    return c.JSON(http.StatusOK, seat)
}

// SetShowingStatus handles PUT /v1/admin/showings/:id/status.  The new
// status is broadcast to every watcher of the showing.
func (h *AdminHandler) SetShowingStatus(c echo.Context) error {
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    var body struct {
        Status model.ShowingStatus `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := h.Coord.AnnounceShowingStatus(showingID, body.Status); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"showing_id": showingID, "status": body.Status})
}

// ConfirmBooking handles PATCH /v1/admin/bookings/:code/confirm.
func (h *AdminHandler) ConfirmBooking(c echo.Context) error {
    b, err := h.Bookings.Confirm(c.Request().Context(), bookingCode(c.Param("code")))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// CompleteBooking handles PATCH /v1/admin/bookings/:code/complete.
func (h *AdminHandler) CompleteBooking(c echo.Context) error {
    b, err := h.Bookings.Complete(c.Request().Context(), bookingCode(c.Param("code")))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Sweep handles POST /v1/admin/holds/sweep and runs one sweep immediately.
func (h *AdminHandler) Sweep(c echo.Context) error {
    n := h.Sweeper.SweepOnce(c.Request().Context())
    return c.JSON(http.StatusOK, echo.Map{"released": n})
}

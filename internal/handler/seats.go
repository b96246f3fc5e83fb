package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-realtime/internal/middleware"
    "github.com/iliyamo/cinema-seat-realtime/internal/service"
)

// SeatHandler exposes snapshot, select and deselect over REST.  Seat
// mutations made here are broadcast to websocket watchers like any other.
type SeatHandler struct {
    Coord *service.Coordinator
    Log   *zap.Logger
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(coord *service.Coordinator, log *zap.Logger) *SeatHandler {
    if coord == nil {
        panic("nil coordinator passed to NewSeatHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &SeatHandler{Coord: coord, Log: log}
}

// Snapshot handles GET /v1/showings/:id/seats and returns every seat of the
// showing with its current status.
func (h *SeatHandler) Snapshot(c echo.Context) error {
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    seats, err := h.Coord.Snapshot(c.Request().Context(), showingID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "showing_id": showingID,
        "count":      len(seats),
        "items":      seats,
    })
}

// Select handles POST /v1/showings/:id/seats/:label/select.
func (h *SeatHandler) Select(c echo.Context) error {
    partyID := middleware.PartyID(c)
    if partyID == "" {
        return unauthorized(c)
    }
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    label := seatLabel(c.Param("label"))
    seat, err := h.Coord.Select(c.Request().Context(), showingID, label, partyID)
    if err != nil {
        return respondError(c, h.Log, err, label)
    }
    return c.JSON(http.StatusOK, seat)
}

// Deselect handles DELETE /v1/showings/:id/seats/:label/select.
func (h *SeatHandler) Deselect(c echo.Context) error {
    partyID := middleware.PartyID(c)
    if partyID == "" {
        return unauthorized(c)
    }
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    label := seatLabel(c.Param("label"))
    seat, err := h.Coord.Deselect(c.Request().Context(), showingID, label, partyID)
    if err != nil {
        return respondError(c, h.Log, err, label)
    }
    return c.JSON(http.StatusOK, seat)
}

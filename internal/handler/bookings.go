package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-realtime/internal/middleware"
    "github.com/iliyamo/cinema-seat-realtime/internal/model"
    "github.com/iliyamo/cinema-seat-realtime/internal/service"
)

// BookingHandler exposes finalize, lookup, listing and cancellation.
type BookingHandler struct {
    Bookings *service.BookingManager
    Log      *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingManager, log *zap.Logger) *BookingHandler {
    if bookings == nil {
        panic("nil booking manager passed to NewBookingHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &BookingHandler{Bookings: bookings, Log: log}
}

// finalizeBody is shared by the REST and websocket finalize requests.
type finalizeBody struct {
    Seats         []string            `json:"seats"`
    Customer      model.Customer      `json:"customer"`
    PaymentMethod model.PaymentMethod `json:"payment_method"`
}

func (b finalizeBody) request(showingID uint64, partyID string) service.FinalizeRequest {
    labels := make([]string, len(b.Seats))
    for i, s := range b.Seats {
        labels[i] = seatLabel(s)
    }
    return service.FinalizeRequest{
        ShowingID:     showingID,
        PartyID:       partyID,
        Labels:        labels,
        Customer:      b.Customer,
        PaymentMethod: b.PaymentMethod,
    }
}

// Finalize handles POST /v1/showings/:id/bookings.  The body lists the
// seats the caller currently holds plus customer details.  On success the
// booking is returned with 201; seats that are no longer held are listed in
// a 409 response.
func (h *BookingHandler) Finalize(c echo.Context) error {
    partyID := middleware.PartyID(c)
    if partyID == "" {
        return unauthorized(c)
    }
    showingID, ok := parseShowingID(c)
    if !ok {
        return badRequest(c, "invalid showing id")
    }
    var body finalizeBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    req := body.request(showingID, partyID)
    b, err := h.Bookings.Finalize(c.Request().Context(), req)
    if err != nil {
        return respondError(c, h.Log, err, req.Labels...)
    }
    return c.JSON(http.StatusCreated, b)
}

// GetByCode handles GET /v1/bookings/code/:code.  The code itself is the
// lookup credential, matching how it is printed for the customer.
func (h *BookingHandler) GetByCode(c echo.Context) error {
    b, err := h.Bookings.Get(c.Request().Context(), bookingCode(c.Param("code")))
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
    partyID := middleware.PartyID(c)
    if partyID == "" {
        return unauthorized(c)
    }
    list, err := h.Bookings.List(c.Request().Context(), partyID)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"count": len(list), "items": list})
}

// Cancel handles PATCH /v1/bookings/:code/cancel.  Owners may cancel their
// own bookings; admins may cancel any.
func (h *BookingHandler) Cancel(c echo.Context) error {
    partyID := middleware.PartyID(c)
    if partyID == "" {
        return unauthorized(c)
    }
    actor := service.Actor{PartyID: partyID, Admin: middleware.IsAdmin(c)}
    b, err := h.Bookings.Cancel(c.Request().Context(), bookingCode(c.Param("code")), actor)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, b)
}

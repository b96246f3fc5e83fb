package handler

import (
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/cinema-seat-realtime/internal/middleware"
    "github.com/iliyamo/cinema-seat-realtime/internal/service"
)

// parseShowingID reads the :id path parameter.
func parseShowingID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// seatLabel normalises the :label path parameter ("a1" -> "A1").
func seatLabel(raw string) string {
    return strings.ToUpper(strings.TrimSpace(raw))
}

// bookingCode normalises a booking code the same way codes are issued.
func bookingCode(raw string) string {
    return strings.ToUpper(strings.TrimSpace(raw))
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "invalid_request"})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
    var held *service.SeatNoLongerHeldError
    switch {
    case errors.As(err, &held):
        return http.StatusConflict
    case errors.Is(err, service.ErrSeatNotFound), errors.Is(err, service.ErrBookingNotFound):
        return http.StatusNotFound
    case errors.Is(err, service.ErrSeatUnavailable),
        errors.Is(err, service.ErrBookingNotCancellable),
        errors.Is(err, service.ErrInvalidTransition),
        errors.Is(err, service.ErrAlreadySeeded):
        return http.StatusConflict
    case errors.Is(err, service.ErrNotHolder), errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden
    case errors.Is(err, service.ErrInvalidRequest):
        return http.StatusBadRequest
    case errors.Is(err, service.ErrTransactionFailed):
        return http.StatusServiceUnavailable
    }
    return http.StatusInternalServerError
}

// respondError writes err with its machine code and the seats it concerns
// so clients can reconcile their view.  Unexpected errors are logged and
// reported generically.
func respondError(c echo.Context, log *zap.Logger, err error, labels ...string) error {
    status := statusFor(err)
    var held *service.SeatNoLongerHeldError
    if errors.As(err, &held) {
        labels = held.Labels
    }
    body := echo.Map{"error": err.Error(), "code": service.Code(err)}
    if status == http.StatusInternalServerError {
        middleware.Logger(c, log).Error("unhandled error", zap.Error(err))
        body["error"] = "internal error"
    }
    if status == http.StatusServiceUnavailable {
        c.Response().Header().Set("Retry-After", "1")
    }
    if len(labels) > 0 {
        body["labels"] = labels
    }
    return c.JSON(status, body)
}

// Package service implements seat selection, hold expiry and booking
// transactions on top of the repository ports, and publishes every
// accepted change through the realtime hub.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

var (
	ErrSeatNotFound          = errors.New("seat not found")
	ErrSeatUnavailable       = errors.New("seat unavailable")
	ErrNotHolder             = errors.New("seat is not held by this party")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrTransactionFailed     = errors.New("transaction failed, please retry")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrAlreadySeeded         = errors.New("showing already has seats")

	// ErrForbidden is returned when the actor may not touch a booking.
	ErrForbidden = repository.ErrForbidden
)

// SeatNoLongerHeldError lists the seats a finalize could not book because
// the party no longer holds them.
type SeatNoLongerHeldError struct {
	Labels []string
}

func (e *SeatNoLongerHeldError) Error() string {
	return fmt.Sprintf("seats no longer held: %s", strings.Join(e.Labels, ","))
}

// Code returns the machine readable code for err.  Unknown errors map to
// "internal".
func Code(err error) string {
	var held *SeatNoLongerHeldError
	switch {
	case errors.As(err, &held):
		return "seat_no_longer_held"
	case errors.Is(err, ErrSeatNotFound):
		return "seat_not_found"
	case errors.Is(err, ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, ErrNotHolder):
		return "not_holder"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrTransactionFailed):
		return "transaction_failed"
	case errors.Is(err, ErrBookingNotFound):
		return "booking_not_found"
	case errors.Is(err, ErrBookingNotCancellable):
		return "booking_not_cancellable"
	case errors.Is(err, ErrAlreadySeeded):
		return "already_seeded"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "internal"
}

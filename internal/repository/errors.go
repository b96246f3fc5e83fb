// Package repository defines the persistence ports of the seat core and
// their MySQL implementations.  The sentinel values below allow the
// service layer to distinguish between different failure scenarios
// without depending on driver specific errors.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because the
// stored state no longer matches what the caller observed, or because
// the row already exists (e.g. seeding a showing twice).
var ErrConflict = errors.New("conflict")

// ErrSeatNotFound is returned when a (showing, label) pair has no seat.
var ErrSeatNotFound = errors.New("seat not found")

// ErrBookingNotFound is returned when no booking has the requested code.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDuplicateCode is returned when a booking code collides with an
// existing one.  Callers generate a new code and retry.
var ErrDuplicateCode = errors.New("duplicate booking code")

// SeatConflictError reports the seats whose compare-and-set failed inside a
// multi-seat transaction.  The whole transaction has been rolled back when
// this error is returned.
type SeatConflictError struct {
	Labels []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seat state changed concurrently: %s", strings.Join(e.Labels, ","))
}

// Is lets errors.Is(err, ErrConflict) match a SeatConflictError.
func (e *SeatConflictError) Is(target error) bool { return target == ErrConflict }

package repository

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// Transition describes one compare-and-set on a seat.  The write succeeds
// only when the seat's current status and holder equal FromStatus and
// FromHolder.  When ToStatus is held, ToHolder and At become the new
// holder and hold start; for every other status both are cleared.
type Transition struct {
	ShowingID  uint64
	Label      string
	FromStatus model.SeatStatus
	FromHolder string
	ToStatus   model.SeatStatus
	ToHolder   string
	At         time.Time
}

// SeatLedger is the durable source of truth for seat state.  Every
// mutation after seeding goes through CompareAndSetStatus.
type SeatLedger interface {
	// SeatsForShowing returns every seat of the showing ordered by row
	// and column.  An unknown showing yields an empty slice.
	SeatsForShowing(ctx context.Context, showingID uint64) ([]model.Seat, error)
	// Seat returns a single seat or ErrSeatNotFound.
	Seat(ctx context.Context, showingID uint64, label string) (model.Seat, error)
	// CompareAndSetStatus applies t if and only if the expectation holds.
	// A lost race returns false with a nil error.
	CompareAndSetStatus(ctx context.Context, t Transition) (bool, error)
	// StaleHolds lists held seats whose hold started before cutoff.
	StaleHolds(ctx context.Context, cutoff time.Time) ([]model.Seat, error)
	// HeldByParty lists all seats currently held by partyID.
	HeldByParty(ctx context.Context, partyID string) ([]model.Seat, error)
	// SeedSeats inserts the layout of a new showing.  ErrConflict is
	// returned if any of the seats already exists.
	SeedSeats(ctx context.Context, seats []model.Seat) error
}

// BookingStore owns booking records.  Both write methods are failure
// atomic together with the seat transitions passed to them.
type BookingStore interface {
	// CreateBooking inserts b and applies flips in one transaction.  When
	// a flip loses its compare-and-set a *SeatConflictError is returned and
	// nothing is persisted.  b.ID, CreatedAt and UpdatedAt are populated on
	// success.
	CreateBooking(ctx context.Context, b *model.Booking, flips []Transition) error
	// TransitionBooking moves the booking from one status to another and
	// applies flips in one transaction.  ErrConflict is returned when the
	// booking is no longer in status from.
	TransitionBooking(ctx context.Context, code string, from, to model.BookingStatus, flips []Transition) error
	// BookingByCode returns the booking or ErrBookingNotFound.
	BookingByCode(ctx context.Context, code string) (*model.Booking, error)
	// BookingsByParty lists bookings of a party, newest first.
	BookingsByParty(ctx context.Context, partyID string) ([]model.Booking, error)
}

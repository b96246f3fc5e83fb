// Package memstore is an in-process implementation of the repository ports.
// It is used when STORE_DRIVER=memory and by the service and realtime tests.
// All state sits behind a single mutex, which makes every write trivially
// atomic together with its seat transitions.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

type seatKey struct {
	showingID uint64
	label     string
}

// Store holds seats and bookings in memory.
type Store struct {
	mu       sync.Mutex
	seats    map[seatKey]*model.Seat
	bookings map[string]*model.Booking
	nextID   uint64

	// FailCommit, when set, makes the next booking write fail with the
	// returned error before anything is applied.  Tests use it to simulate
	// a storage outage.
	FailCommit func() error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		seats:    make(map[seatKey]*model.Seat),
		bookings: make(map[string]*model.Booking),
	}
}

var (
	_ repository.SeatLedger   = (*Store)(nil)
	_ repository.BookingStore = (*Store)(nil)
)

func copySeat(s *model.Seat) model.Seat {
	out := *s
	if s.HeldAt != nil {
		t := *s.HeldAt
		out.HeldAt = &t
	}
	return out
}

func copyBooking(b *model.Booking) model.Booking {
	out := *b
	out.SeatLabels = append([]string(nil), b.SeatLabels...)
	return out
}

// sortSeats orders seats the same way the MySQL ledger does: shorter row
// labels first, then row label, then column.
func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		a, b := seats[i], seats[j]
		if a.ShowingID != b.ShowingID {
			return a.ShowingID < b.ShowingID
		}
		if len(a.Row) != len(b.Row) {
			return len(a.Row) < len(b.Row)
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Column < b.Column
	})
}

func (s *Store) SeatsForShowing(_ context.Context, showingID uint64) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0)
	for k, seat := range s.seats {
		if k.showingID == showingID {
			out = append(out, copySeat(seat))
		}
	}
	sortSeats(out)
	return out, nil
}

func (s *Store) Seat(_ context.Context, showingID uint64, label string) (model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatKey{showingID, label}]
	if !ok {
		return model.Seat{}, repository.ErrSeatNotFound
	}
	return copySeat(seat), nil
}

func (s *Store) CompareAndSetStatus(_ context.Context, t repository.Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casLocked(t), nil
}

// casLocked applies t when the expectation holds.  s.mu must be held.
func (s *Store) casLocked(t repository.Transition) bool {
	seat, ok := s.seats[seatKey{t.ShowingID, t.Label}]
	if !ok || seat.Status != t.FromStatus || seat.HolderID != t.FromHolder {
		return false
	}
	seat.Status = t.ToStatus
	if t.ToStatus == model.SeatHeld {
		at := t.At.UTC()
		seat.HolderID = t.ToHolder
		seat.HeldAt = &at
	} else {
		seat.HolderID = ""
		seat.HeldAt = nil
	}
	seat.Version++
	return true
}

// checkLocked reports the labels of flips whose expectation does not hold.
func (s *Store) checkLocked(flips []repository.Transition) []string {
	var lost []string
	for _, t := range flips {
		seat, ok := s.seats[seatKey{t.ShowingID, t.Label}]
		if !ok || seat.Status != t.FromStatus || seat.HolderID != t.FromHolder {
			lost = append(lost, t.Label)
		}
	}
	return lost
}

func (s *Store) StaleHolds(_ context.Context, cutoff time.Time) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0)
	for _, seat := range s.seats {
		if seat.StaleAt(cutoff) {
			out = append(out, copySeat(seat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HeldAt.Before(*out[j].HeldAt) })
	return out, nil
}

func (s *Store) HeldByParty(_ context.Context, partyID string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0)
	for _, seat := range s.seats {
		if seat.HeldBy(partyID) {
			out = append(out, copySeat(seat))
		}
	}
	sortSeats(out)
	return out, nil
}

func (s *Store) SeedSeats(_ context.Context, seats []model.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		if _, ok := s.seats[seatKey{seat.ShowingID, seat.Label}]; ok {
			return repository.ErrConflict
		}
	}
	for _, seat := range seats {
		c := seat
		c.Status = model.SeatAvailable
		c.HolderID = ""
		c.HeldAt = nil
		c.Version = 0
		s.seats[seatKey{seat.ShowingID, seat.Label}] = &c
	}
	return nil
}

func (s *Store) failing() error {
	if s.FailCommit == nil {
		return nil
	}
	return s.FailCommit()
}

func (s *Store) CreateBooking(_ context.Context, b *model.Booking, flips []repository.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	if _, ok := s.bookings[b.Code]; ok {
		return repository.ErrDuplicateCode
	}
	if lost := s.checkLocked(flips); len(lost) > 0 {
		return &repository.SeatConflictError{Labels: lost}
	}
	for _, t := range flips {
		s.casLocked(t)
	}
	s.nextID++
	now := time.Now().UTC()
	b.ID = s.nextID
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := copyBooking(b)
	s.bookings[b.Code] = &stored
	return nil
}

func (s *Store) TransitionBooking(_ context.Context, code string, from, to model.BookingStatus, flips []repository.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return err
	}
	b, ok := s.bookings[code]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != from {
		return repository.ErrConflict
	}
	if lost := s.checkLocked(flips); len(lost) > 0 {
		return &repository.SeatConflictError{Labels: lost}
	}
	for _, t := range flips {
		s.casLocked(t)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) BookingByCode(_ context.Context, code string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[code]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	out := copyBooking(b)
	return &out, nil
}

func (s *Store) BookingsByParty(_ context.Context, partyID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.PartyID == partyID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

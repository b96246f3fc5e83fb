package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	var seats []model.Seat
	for _, row := range []string{"AA", "B", "A"} {
		for col := uint32(2); col >= 1; col-- {
			seats = append(seats, model.Seat{ShowingID: 1, Label: row + string(rune('0'+col)), Row: row, Column: col, PriceCents: 100})
		}
	}
	require.NoError(t, s.SeedSeats(context.Background(), seats))
	return s
}

func TestSeatsAreOrderedLikeTheLayout(t *testing.T) {
	s := seeded(t)
	seats, err := s.SeatsForShowing(context.Background(), 1)
	require.NoError(t, err)

	labels := make([]string, 0, len(seats))
	for _, seat := range seats {
		labels = append(labels, seat.Label)
		assert.Equal(t, model.SeatAvailable, seat.Status)
	}
	assert.Equal(t, []string{"A1", "A2", "B1", "B2", "AA1", "AA2"}, labels)

	assert.ErrorIs(t, s.SeedSeats(context.Background(), seats[:1]), repository.ErrConflict)

	none, err := s.SeatsForShowing(context.Background(), 2)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCompareAndSet(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := s.CompareAndSetStatus(ctx, repository.Transition{ShowingID: 1, Label: "A1", FromStatus: model.SeatAvailable, ToStatus: model.SeatHeld, ToHolder: "p1", At: at})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndSetStatus(ctx, repository.Transition{ShowingID: 1, Label: "A1", FromStatus: model.SeatAvailable, ToStatus: model.SeatHeld, ToHolder: "p2", At: at})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndSetStatus(ctx, repository.Transition{ShowingID: 1, Label: "A1", FromStatus: model.SeatHeld, FromHolder: "p2", ToStatus: model.SeatAvailable})
	require.NoError(t, err)
	assert.False(t, ok)

	seat, err := s.Seat(ctx, 1, "A1")
	require.NoError(t, err)
	assert.Equal(t, "p1", seat.HolderID)
	assert.Equal(t, uint32(1), seat.Version)

	// returned seats are copies
	seat.HeldAt = nil
	again, err := s.Seat(ctx, 1, "A1")
	require.NoError(t, err)
	assert.NotNil(t, again.HeldAt)

	stale, err := s.StaleHolds(ctx, at.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, stale, 1)
	stale, err = s.StaleHolds(ctx, at)
	require.NoError(t, err)
	assert.Empty(t, stale)

	_, err = s.Seat(ctx, 1, "Z1")
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func TestCreateBookingAllOrNothing(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	for _, l := range []string{"A1", "A2"} {
		ok, err := s.CompareAndSetStatus(ctx, repository.Transition{ShowingID: 1, Label: l, FromStatus: model.SeatAvailable, ToStatus: model.SeatHeld, ToHolder: "p1", At: time.Now()})
		require.NoError(t, err)
		require.True(t, ok)
	}
	flip := func(l, holder string) repository.Transition {
		return repository.Transition{ShowingID: 1, Label: l, FromStatus: model.SeatHeld, FromHolder: holder, ToStatus: model.SeatBooked}
	}

	b := &model.Booking{Code: "BK1", ShowingID: 1, PartyID: "p1", SeatLabels: []string{"A1", "B1"}}
	err := s.CreateBooking(ctx, b, []repository.Transition{flip("A1", "p1"), flip("B1", "p1")})
	var conflict *repository.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"B1"}, conflict.Labels)
	a1, _ := s.Seat(ctx, 1, "A1")
	assert.Equal(t, model.SeatHeld, a1.Status)
	_, err = s.BookingByCode(ctx, "BK1")
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)

	b.SeatLabels = []string{"A1", "A2"}
	require.NoError(t, s.CreateBooking(ctx, b, []repository.Transition{flip("A1", "p1"), flip("A2", "p1")}))
	assert.Equal(t, uint64(1), b.ID)

	dup := &model.Booking{Code: "BK1", ShowingID: 1, PartyID: "p2"}
	assert.ErrorIs(t, s.CreateBooking(ctx, dup, nil), repository.ErrDuplicateCode)

	assert.ErrorIs(t, s.TransitionBooking(ctx, "BK1", model.BookingConfirmed, model.BookingCompleted, nil), repository.ErrConflict)
	assert.ErrorIs(t, s.TransitionBooking(ctx, "BK9", "", model.BookingCancelled, nil), repository.ErrBookingNotFound)
}

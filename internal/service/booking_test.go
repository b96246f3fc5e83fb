package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/queue"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

// staleBookings hands out one outdated copy of a booking before reading
// through, as if the booking changed between two reads.
type staleBookings struct {
	repository.BookingStore
	stale *model.Booking
}

func (s *staleBookings) BookingByCode(ctx context.Context, code string) (*model.Booking, error) {
	if b := s.stale; b != nil && b.Code == code {
		s.stale = nil
		return b, nil
	}
	return s.BookingStore.BookingByCode(ctx, code)
}

// lostSeatBookings fails every insert as if the listed seats lost their
// compare-and-set inside the transaction.
type lostSeatBookings struct {
	repository.BookingStore
	lost []string
}

func (s *lostSeatBookings) CreateBooking(context.Context, *model.Booking, []repository.Transition) error {
	return &repository.SeatConflictError{Labels: s.lost}
}

func hold(t *testing.T, f *fixture, party string, labels ...string) {
	t.Helper()
	for _, l := range labels {
		_, err := f.coord.Select(context.Background(), showing, l, party)
		require.NoError(t, err, l)
	}
}

func finalize(f *fixture, party string, labels ...string) (*model.Booking, error) {
	return f.bookings.Finalize(context.Background(), FinalizeRequest{
		ShowingID: showing,
		PartyID:   party,
		Labels:    labels,
		Customer:  customer(),
	})
}

func TestNewBookingCode(t *testing.T) {
	code := NewBookingCode()
	assert.Len(t, code, 12)
	assert.True(t, strings.HasPrefix(code, "BK"))
	assert.Equal(t, strings.ToUpper(code), code)
	assert.NotEqual(t, code, NewBookingCode())
}

func TestFinalizeBooksEverySeat(t *testing.T) {
	f := newFixture(t)
	observer := f.watch(t, "p2")
	hold(t, f, "p1", "A1", "B2")
	next(t, observer)
	next(t, observer)

	b, err := finalize(f, "p1", "A1", "B2")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, uint32(2500), b.TotalCents)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentCash, b.PaymentMethod)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, []string{"A1", "B2"}, b.SeatLabels)

	for _, l := range []string{"A1", "B2"} {
		seat := f.seat(t, l)
		assert.Equal(t, model.SeatBooked, seat.Status, l)
		assert.Empty(t, seat.HolderID, l)
	}

	ev := next(t, observer)
	assert.Equal(t, realtime.EventSeatUpdate, ev.Type)
	assert.Equal(t, string(model.SeatBooked), ev.Status)
	assert.Equal(t, b.Code, ev.BookingCode)
	assert.Equal(t, []string{"A1", "B2"}, ev.Labels)

	got, err := f.bookings.Get(context.Background(), b.Code)
	require.NoError(t, err)
	assert.Equal(t, b.TotalCents, got.TotalCents)
	assert.Equal(t, []string{queue.KindFinalized}, f.notes.kinds())
}

func TestFinalizeIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	hold(t, f, "p1", "A1")
	hold(t, f, "p2", "A2")

	_, err := finalize(f, "p1", "A1", "A2", "A3")
	var held *SeatNoLongerHeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, []string{"A2", "A3"}, held.Labels)
	assert.Equal(t, "seat_no_longer_held", Code(err))

	assert.True(t, f.seat(t, "A1").HeldBy("p1"))
	assert.True(t, f.seat(t, "A2").HeldBy("p2"))
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A3").Status)
	assert.Empty(t, f.notes.kinds())
}

func TestFinalizeValidation(t *testing.T) {
	f := newFixture(t)
	hold(t, f, "p1", "A1")

	cases := map[string]FinalizeRequest{
		"no seats":      {ShowingID: showing, PartyID: "p1", Customer: customer()},
		"duplicate":     {ShowingID: showing, PartyID: "p1", Labels: []string{"A1", "A1"}, Customer: customer()},
		"no customer":   {ShowingID: showing, PartyID: "p1", Labels: []string{"A1"}},
		"bad payment":   {ShowingID: showing, PartyID: "p1", Labels: []string{"A1"}, Customer: customer(), PaymentMethod: "crypto"},
		"unknown seat":  {ShowingID: showing, PartyID: "p1", Labels: []string{"A1", "Q7"}, Customer: customer()},
		"missing party": {ShowingID: showing, Labels: []string{"A1"}, Customer: customer()},
		"long party":    {ShowingID: showing, PartyID: strings.Repeat("p", model.MaxPartyIDLength+1), Labels: []string{"A1"}, Customer: customer()},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.bookings.Finalize(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.True(t, f.seat(t, "A1").HeldBy("p1"))
}

func TestFinalizeStorageFailureKeepsHolds(t *testing.T) {
	f := newFixture(t)
	hold(t, f, "p1", "A1", "A2")
	f.store.FailCommit = func() error { return errors.New("connection reset") }

	_, err := finalize(f, "p1", "A1", "A2")
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Equal(t, "transaction_failed", Code(err))
	assert.True(t, f.seat(t, "A1").HeldBy("p1"))
	assert.True(t, f.seat(t, "A2").HeldBy("p1"))

	f.store.FailCommit = nil
	b, err := finalize(f, "p1", "A1", "A2")
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), b.TotalCents)
}

func TestFinalizeRetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	hold(t, f, "p1", "A1")
	f.bookings.newCode = func() string { return "BKTAKEN00000" }
	_, err := finalize(f, "p1", "A1")
	require.NoError(t, err)

	codes := []string{"BKTAKEN00000", "BKTAKEN00000", "BKFRESH00000"}
	f.bookings.newCode = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}
	hold(t, f, "p2", "A2")
	b, err := finalize(f, "p2", "A2")
	require.NoError(t, err)
	assert.Equal(t, "BKFRESH00000", b.Code)

	f.bookings.newCode = func() string { return "BKTAKEN00000" }
	hold(t, f, "p2", "A3")
	_, err = finalize(f, "p2", "A3")
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.True(t, f.seat(t, "A3").HeldBy("p2"))
}

// P1 books A1 while P2 watches; A1 is then unavailable for good.
func TestBookedSeatStaysUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Select(ctx, showing, "A1", "p1")
	require.NoError(t, err)
	_, err = f.coord.Select(ctx, showing, "A1", "p2")
	assert.ErrorIs(t, err, ErrSeatUnavailable)

	_, err = finalize(f, "p1", "A1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, f.seat(t, "A1").Status)

	_, err = f.coord.Select(ctx, showing, "A1", "p2")
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	_, err = f.coord.Deselect(ctx, showing, "A1", "p1")
	assert.ErrorIs(t, err, ErrNotHolder)
}

// A2 expires before finalize; the booking fails for A2 and A1 stays held.
func TestFinalizeAfterPartialExpiry(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.coord.SetClock(func() time.Time { return t0 })
	hold(t, f, "p1", "A2")
	f.coord.SetClock(func() time.Time { return t0.Add(50 * time.Second) })
	hold(t, f, "p1", "A1")

	sw := NewSweeper(f.store, f.coord, time.Second, time.Minute, nil)
	sw.SetClock(func() time.Time { return t0.Add(70 * time.Second) })
	assert.Equal(t, 1, sw.SweepOnce(context.Background()))

	_, err := finalize(f, "p1", "A1", "A2")
	var held *SeatNoLongerHeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, []string{"A2"}, held.Labels)
	assert.True(t, f.seat(t, "A1").HeldBy("p1"))
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A2").Status)
}

func TestCancelReleasesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold(t, f, "p1", "A1", "A2")
	b, err := finalize(f, "p1", "A1", "A2")
	require.NoError(t, err)
	observer := f.watch(t, "p3")

	_, err = f.bookings.Cancel(ctx, b.Code, Actor{PartyID: "p2"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.bookings.Cancel(ctx, b.Code, Actor{})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.bookings.Cancel(ctx, b.Code, Actor{PartyID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	ev := next(t, observer)
	assert.Equal(t, string(model.SeatAvailable), ev.Status)
	assert.Equal(t, b.Code, ev.BookingCode)
	assert.ElementsMatch(t, []string{"A1", "A2"}, ev.Labels)

	for _, l := range []string{"A1", "A2"} {
		assert.Equal(t, model.SeatAvailable, f.seat(t, l).Status, l)
	}
	_, err = f.coord.Select(ctx, showing, "A1", "p2")
	assert.NoError(t, err)

	_, err = f.bookings.Cancel(ctx, b.Code, Actor{Admin: true})
	assert.ErrorIs(t, err, ErrBookingNotCancellable)

	_, err = f.bookings.Cancel(ctx, "BKNOPE", Actor{Admin: true})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	assert.Equal(t, []string{queue.KindFinalized, queue.KindCancelled}, f.notes.kinds())
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold(t, f, "p1", "B1")
	b, err := finalize(f, "p1", "B1")
	require.NoError(t, err)
	observer := f.watch(t, "")

	_, err = f.bookings.Complete(ctx, b.Code)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.bookings.Confirm(ctx, b.Code)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	ev := next(t, observer)
	assert.Equal(t, realtime.EventBookingUpdate, ev.Type)
	assert.Equal(t, "confirmed", ev.Status)

	_, err = f.bookings.Confirm(ctx, b.Code)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err = f.bookings.Complete(ctx, b.Code)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, got.Status)

	_, err = f.bookings.Cancel(ctx, b.Code, Actor{PartyID: "p1"})
	assert.ErrorIs(t, err, ErrBookingNotCancellable)
	assert.Equal(t, model.SeatBooked, f.seat(t, "B1").Status)
}

func TestCancelSeesStatusChangedAfterFirstRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold(t, f, "p1", "A1", "B1")

	b, err := finalize(f, "p1", "A1")
	require.NoError(t, err)
	pending := *b
	_, err = f.bookings.Confirm(ctx, b.Code)
	require.NoError(t, err)

	m := NewBookingManager(f.store, &staleBookings{BookingStore: f.store, stale: &pending}, f.hub, f.notes, nil)
	got, err := m.Cancel(ctx, b.Code, Actor{PartyID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A1").Status)

	// completed in between: the fresh read wins and nothing is released
	c, err := finalize(f, "p1", "B1")
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, c.Code)
	require.NoError(t, err)
	confirmed, err := f.bookings.Get(ctx, c.Code)
	require.NoError(t, err)
	_, err = f.bookings.Complete(ctx, c.Code)
	require.NoError(t, err)

	m = NewBookingManager(f.store, &staleBookings{BookingStore: f.store, stale: confirmed}, f.hub, f.notes, nil)
	_, err = m.Cancel(ctx, c.Code, Actor{Admin: true})
	assert.ErrorIs(t, err, ErrBookingNotCancellable)
	assert.Equal(t, model.SeatBooked, f.seat(t, "B1").Status)
	final, err := f.bookings.Get(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, final.Status)
}

// A seat lost inside the booking transaction surfaces as the same error a
// failed pre-check gives, and nothing is published or notified.
func TestFinalizeTransactionConflictIsNoLongerHeld(t *testing.T) {
	f := newFixture(t)
	observer := f.watch(t, "p2")
	hold(t, f, "p1", "A1", "A2")
	next(t, observer)
	next(t, observer)

	m := NewBookingManager(f.store, &lostSeatBookings{BookingStore: f.store, lost: []string{"A2"}}, f.hub, f.notes, nil)
	_, err := m.Finalize(context.Background(), FinalizeRequest{
		ShowingID: showing,
		PartyID:   "p1",
		Labels:    []string{"A1", "A2"},
		Customer:  customer(),
	})
	var held *SeatNoLongerHeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, []string{"A2"}, held.Labels)
	assert.Equal(t, "seat_no_longer_held", Code(err))

	assert.Empty(t, observer.Events())
	assert.True(t, f.seat(t, "A1").HeldBy("p1"))
	assert.True(t, f.seat(t, "A2").HeldBy("p1"))
	assert.Empty(t, f.notes.kinds())
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	hold(t, f, "p1", "A1", "A2")
	first, err := finalize(f, "p1", "A1")
	require.NoError(t, err)
	second, err := finalize(f, "p1", "A2")
	require.NoError(t, err)

	list, err := f.bookings.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Code, list[0].Code)
	assert.Equal(t, first.Code, list[1].Code)

	list, err = f.bookings.List(context.Background(), "p9")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.bookings.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/queue"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository/memstore"
)

const showing = uint64(1)

// recorder captures booking notifications.
type recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recorder) Notify(_ context.Context, ev queue.BookingEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	store    *memstore.Store
	hub      *realtime.Hub
	coord    *Coordinator
	bookings *BookingManager
	notes    *recorder
}

// newFixture seeds showing 1 with rows A (standard, 1000) and B (premium,
// 1500), three seats each.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	hub := realtime.NewHub(store, nil)
	coord := NewCoordinator(store, hub, nil)
	notes := &recorder{}
	f := &fixture{
		store:    store,
		hub:      hub,
		coord:    coord,
		bookings: NewBookingManager(store, store, hub, notes, nil),
		notes:    notes,
	}
	_, err := coord.SeedShowing(context.Background(), showing, model.Layout{
		Rows:           2,
		Columns:        3,
		RowClasses:     map[int]model.SeatClass{2: model.SeatPremium},
		BasePriceCents: 1000,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seat(t *testing.T, label string) model.Seat {
	t.Helper()
	s, err := f.store.Seat(context.Background(), showing, label)
	require.NoError(t, err)
	return s
}

func (f *fixture) watch(t *testing.T, partyID string) *realtime.Watcher {
	t.Helper()
	w := realtime.NewWatcher(partyID, 64)
	require.NoError(t, f.hub.Subscribe(context.Background(), w, showing))
	snap := next(t, w)
	require.Equal(t, realtime.EventSnapshot, snap.Type)
	return w
}

func next(t *testing.T, w *realtime.Watcher) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "watcher closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return realtime.Event{}
}

func customer() model.Customer {
	return model.Customer{Name: "Sara", Email: "sara@example.com"}
}

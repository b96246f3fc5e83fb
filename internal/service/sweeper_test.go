package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

func TestSweepReleasesStaleHolds(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)
	observer := f.watch(t, "p9")

	f.coord.SetClock(func() time.Time { return t0 })
	hold(t, f, "p1", "A1")
	f.coord.SetClock(func() time.Time { return t0.Add(4 * time.Minute) })
	hold(t, f, "p2", "A2")
	next(t, observer)
	next(t, observer)

	sw := NewSweeper(f.store, f.coord, time.Minute, 5*time.Minute, nil)

	sw.SetClock(func() time.Time { return t0.Add(4 * time.Minute) })
	assert.Zero(t, sw.SweepOnce(context.Background()))

	sw.SetClock(func() time.Time { return t0.Add(6 * time.Minute) })
	assert.Equal(t, 1, sw.SweepOnce(context.Background()))
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A1").Status)
	assert.True(t, f.seat(t, "A2").HeldBy("p2"))

	ev := next(t, observer)
	assert.Equal(t, string(model.SeatAvailable), ev.Status)
	assert.Equal(t, []string{"A1"}, ev.Labels)

	sw.SetClock(func() time.Time { return t0.Add(10 * time.Minute) })
	assert.Equal(t, 1, sw.SweepOnce(context.Background()))
	assert.Zero(t, sw.SweepOnce(context.Background()))
}

func TestExpireSkipsChangedSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hold(t, f, "p1", "A1")
	stale := f.seat(t, "A1")

	_, err := f.coord.Deselect(ctx, showing, "A1", "p1")
	require.NoError(t, err)
	hold(t, f, "p2", "A1")

	ok, err := f.coord.Expire(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.seat(t, "A1").HeldBy("p2"))

	ok, err = f.coord.Expire(ctx, f.seat(t, "A2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sw := NewSweeper(f.store, f.coord, 10*time.Millisecond, time.Nanosecond, nil)
	hold(t, f, "p1", "A1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.seat(t, "A1").Status == model.SeatAvailable
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

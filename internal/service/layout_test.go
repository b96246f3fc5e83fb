package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
)

func TestRowLabel(t *testing.T) {
	cases := map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA", -1: ""}
	for in, want := range cases {
		assert.Equal(t, want, RowLabel(in), "row %d", in)
	}
}

func TestClassPrice(t *testing.T) {
	assert.Equal(t, uint32(1000), ClassPrice(1000, model.SeatStandard))
	assert.Equal(t, uint32(1500), ClassPrice(1000, model.SeatPremium))
	assert.Equal(t, uint32(2000), ClassPrice(1000, model.SeatCompanion))
}

func TestBuildSeats(t *testing.T) {
	seats, err := BuildSeats(7, model.Layout{
		Rows:           3,
		Columns:        2,
		RowClasses:     map[int]model.SeatClass{3: model.SeatCompanion},
		BasePriceCents: 900,
	})
	require.NoError(t, err)
	require.Len(t, seats, 6)

	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		labels = append(labels, s.Label)
		assert.Equal(t, uint64(7), s.ShowingID)
		assert.Equal(t, model.SeatAvailable, s.Status)
	}
	assert.Equal(t, []string{"A1", "A2", "B1", "B2", "C1", "C2"}, labels)
	assert.Equal(t, model.SeatStandard, seats[0].Class)
	assert.Equal(t, uint32(900), seats[0].PriceCents)
	assert.Equal(t, model.SeatCompanion, seats[5].Class)
	assert.Equal(t, uint32(1800), seats[5].PriceCents)
	assert.Equal(t, "C", seats[5].Row)
	assert.Equal(t, uint32(2), seats[5].Column)
}

func TestBuildSeatsRejects(t *testing.T) {
	cases := map[string]model.Layout{
		"no rows":       {Rows: 0, Columns: 5, BasePriceCents: 100},
		"too wide":      {Rows: 1, Columns: 101, BasePriceCents: 100},
		"free":          {Rows: 1, Columns: 1},
		"row out":       {Rows: 2, Columns: 2, BasePriceCents: 100, RowClasses: map[int]model.SeatClass{3: model.SeatPremium}},
		"unknown class": {Rows: 2, Columns: 2, BasePriceCents: 100, RowClasses: map[int]model.SeatClass{1: "vip"}},
	}
	for name, layout := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildSeats(1, layout)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	_, err := BuildSeats(0, model.Layout{Rows: 1, Columns: 1, BasePriceCents: 100})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSeedShowing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.SeedShowing(ctx, showing, model.Layout{Rows: 1, Columns: 1, BasePriceCents: 100})
	assert.ErrorIs(t, err, ErrAlreadySeeded)
	assert.Equal(t, "already_seeded", Code(err))

	w := realtime.NewWatcher("", 8)
	require.NoError(t, f.hub.Subscribe(ctx, w, 5))
	snap := next(t, w)
	assert.Empty(t, snap.Seats)

	seats, err := f.coord.SeedShowing(ctx, 5, model.Layout{Rows: 2, Columns: 2, BasePriceCents: 100})
	require.NoError(t, err)
	assert.Len(t, seats, 4)

	ev := next(t, w)
	assert.Equal(t, realtime.EventSnapshot, ev.Type)
	assert.Len(t, ev.Seats, 4)
	assert.Equal(t, snap.Seq+1, ev.Seq)
}

func TestCodeMapping(t *testing.T) {
	assert.Equal(t, "forbidden", Code(ErrForbidden))
	assert.Equal(t, "booking_not_found", Code(ErrBookingNotFound))
	assert.Equal(t, "internal", Code(errors.New("boom")))
}

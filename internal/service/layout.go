package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

const (
	maxRows    = 100
	maxColumns = 100
)

// RowLabel converts a zero-based row index into a spreadsheet style label:
// 0 -> "A", 25 -> "Z", 26 -> "AA".
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// ClassPrice applies the class multiplier to the base price: premium seats
// cost 1.5x and companion seats 2x.
func ClassPrice(base uint32, class model.SeatClass) uint32 {
	switch class {
	case model.SeatPremium:
		return base * 3 / 2
	case model.SeatCompanion:
		return base * 2
	}
	return base
}

// BuildSeats expands a layout into the seats of a showing.
func BuildSeats(showingID uint64, layout model.Layout) ([]model.Seat, error) {
	if showingID == 0 {
		return nil, fmt.Errorf("%w: showing id is required", ErrInvalidRequest)
	}
	if layout.Rows < 1 || layout.Rows > maxRows || layout.Columns < 1 || layout.Columns > maxColumns {
		return nil, fmt.Errorf("%w: layout must be between 1x1 and %dx%d", ErrInvalidRequest, maxRows, maxColumns)
	}
	if layout.BasePriceCents == 0 {
		return nil, fmt.Errorf("%w: base price must be positive", ErrInvalidRequest)
	}
	for row, class := range layout.RowClasses {
		if row < 1 || row > layout.Rows {
			return nil, fmt.Errorf("%w: row %d outside layout", ErrInvalidRequest, row)
		}
		if !class.Valid() {
			return nil, fmt.Errorf("%w: unknown seat class %q", ErrInvalidRequest, class)
		}
	}

	seats := make([]model.Seat, 0, layout.Rows*layout.Columns)
	for r := 1; r <= layout.Rows; r++ {
		row := RowLabel(r - 1)
		class, ok := layout.RowClasses[r]
		if !ok {
			class = model.SeatStandard
		}
		price := ClassPrice(layout.BasePriceCents, class)
		for col := 1; col <= layout.Columns; col++ {
			seats = append(seats, model.Seat{
				ShowingID:  showingID,
				Label:      row + strconv.Itoa(col),
				Row:        row,
				Column:     uint32(col),
				Class:      class,
				PriceCents: price,
				Status:     model.SeatAvailable,
			})
		}
	}
	return seats, nil
}

// SeedShowing creates the seats of a newly scheduled showing and pushes a
// fresh snapshot to anyone already watching it.
func (c *Coordinator) SeedShowing(ctx context.Context, showingID uint64, layout model.Layout) ([]model.Seat, error) {
	seats, err := BuildSeats(showingID, layout)
	if err != nil {
		return nil, err
	}
	err = c.hub.Serialize(showingID, func(publish func(realtime.Event) uint64) error {
		if err := c.ledger.SeedSeats(ctx, seats); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: showing %d", ErrAlreadySeeded, showingID)
			}
			return fmt.Errorf("seed showing %d: %w", showingID, err)
		}
		publish(realtime.Event{Type: realtime.EventSnapshot, Seats: seats})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("showing seeded", zap.Uint64("showing_id", showingID), zap.Int("seats", len(seats)))
	return seats, nil
}

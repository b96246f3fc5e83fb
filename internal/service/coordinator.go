package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

// Broadcaster orders mutations of a showing with the events they produce.
// *realtime.Hub implements it.
type Broadcaster interface {
	Serialize(showingID uint64, fn func(publish func(realtime.Event) uint64) error) error
	Publish(showingID uint64, ev realtime.Event) uint64
}

// Origin identifies the watcher a request came from.  Events caused by the
// request are not echoed back to that watcher; Seq is set to the sequence
// number of the last such event so the reply can carry it instead.
type Origin struct {
	WatcherID string
	Seq       uint64
}

type originKey struct{}

// WithOrigin marks ctx as coming from o.  o must not be shared between
// concurrent requests.
func WithOrigin(ctx context.Context, o *Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

func originFrom(ctx context.Context) *Origin {
	o, _ := ctx.Value(originKey{}).(*Origin)
	return o
}

// emit publishes ev on behalf of the request's originating watcher, if any,
// and records the sequence number it was given.
func emit(ctx context.Context, publish func(realtime.Event) uint64, ev realtime.Event) {
	o := originFrom(ctx)
	if o != nil {
		ev.Origin = o.WatcherID
	}
	seq := publish(ev)
	if o != nil {
		o.Seq = seq
	}
}

// Coordinator runs the per-seat state machine:
//
//	available -> held       Select
//	held      -> available  Deselect, ReleaseAllByParty, Expire
//	available|held -> blocked, blocked -> available  SetStatus (admin)
//
// held -> booked is owned by BookingManager.
type Coordinator struct {
	ledger repository.SeatLedger
	hub    Broadcaster
	log    *zap.Logger
	now    func() time.Time
}

// NewCoordinator wires a coordinator to its ledger and hub.
func NewCoordinator(ledger repository.SeatLedger, hub Broadcaster, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{ledger: ledger, hub: hub, log: log.Named("coordinator"), now: time.Now}
}

// SetClock replaces the time source used for hold timestamps.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// Snapshot returns every seat of the showing.
func (c *Coordinator) Snapshot(ctx context.Context, showingID uint64) ([]model.Seat, error) {
	return c.ledger.SeatsForShowing(ctx, showingID)
}

func (c *Coordinator) lookup(ctx context.Context, showingID uint64, label string) (model.Seat, error) {
	seat, err := c.ledger.Seat(ctx, showingID, label)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return model.Seat{}, fmt.Errorf("%w: %s", ErrSeatNotFound, label)
	}
	if err != nil {
		return model.Seat{}, fmt.Errorf("load seat %s: %w", label, err)
	}
	return seat, nil
}

// Select places a hold on an available seat for partyID.  A seat that is in
// any other state, or that another party wins concurrently, yields
// ErrSeatUnavailable.
func (c *Coordinator) Select(ctx context.Context, showingID uint64, label, partyID string) (model.Seat, error) {
	if !model.ValidPartyID(partyID) || label == "" {
		return model.Seat{}, ErrInvalidRequest
	}
	var out model.Seat
	err := c.hub.Serialize(showingID, func(publish func(realtime.Event) uint64) error {
		seat, err := c.lookup(ctx, showingID, label)
		if err != nil {
			return err
		}
		if seat.Status != model.SeatAvailable {
			return fmt.Errorf("%w: %s is %s", ErrSeatUnavailable, label, seat.Status)
		}
		now := c.now().UTC()
		ok, err := c.ledger.CompareAndSetStatus(ctx, repository.Transition{
			ShowingID:  showingID,
			Label:      label,
			FromStatus: model.SeatAvailable,
			ToStatus:   model.SeatHeld,
			ToHolder:   partyID,
			At:         now,
		})
		if err != nil {
			return fmt.Errorf("hold %s: %w", label, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrSeatUnavailable, label)
		}
		seat.Status = model.SeatHeld
		seat.HolderID = partyID
		seat.HeldAt = &now
		seat.Version++
		out = seat

		emit(ctx, publish, realtime.SeatEvent(model.SeatHeld, partyID, label))
		return nil
	})
	return out, err
}

// Deselect releases a hold owned by partyID.
func (c *Coordinator) Deselect(ctx context.Context, showingID uint64, label, partyID string) (model.Seat, error) {
	if partyID == "" || label == "" {
		return model.Seat{}, ErrInvalidRequest
	}
	var out model.Seat
	err := c.hub.Serialize(showingID, func(publish func(realtime.Event) uint64) error {
		seat, err := c.lookup(ctx, showingID, label)
		if err != nil {
			return err
		}
		if !seat.HeldBy(partyID) {
			return fmt.Errorf("%w: %s", ErrNotHolder, label)
		}
		ok, err := c.ledger.CompareAndSetStatus(ctx, repository.Transition{
			ShowingID:  showingID,
			Label:      label,
			FromStatus: model.SeatHeld,
			FromHolder: partyID,
			ToStatus:   model.SeatAvailable,
		})
		if err != nil {
			return fmt.Errorf("release %s: %w", label, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotHolder, label)
		}
		seat.Status = model.SeatAvailable
		seat.HolderID = ""
		seat.HeldAt = nil
		seat.Version++
		out = seat

		emit(ctx, publish, realtime.SeatEvent(model.SeatAvailable, "", label))
		return nil
	})
	return out, err
}

// adminTransitionAllowed lists the maintenance toggles.
func adminTransitionAllowed(from, to model.SeatStatus) bool {
	switch to {
	case model.SeatBlocked:
		return from == model.SeatAvailable || from == model.SeatHeld
	case model.SeatAvailable:
		return from == model.SeatBlocked
	}
	return false
}

// SetStatus blocks or unblocks a seat regardless of its holder.  The write
// is still a compare-and-set against the state observed here, so a seat
// booked in the meantime is never overwritten.
func (c *Coordinator) SetStatus(ctx context.Context, showingID uint64, label string, status model.SeatStatus) (model.Seat, error) {
	if label == "" || !status.Valid() {
		return model.Seat{}, ErrInvalidRequest
	}
	var out model.Seat
	err := c.hub.Serialize(showingID, func(publish func(realtime.Event) uint64) error {
		seat, err := c.lookup(ctx, showingID, label)
		if err != nil {
			return err
		}
		if !adminTransitionAllowed(seat.Status, status) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, label, seat.Status, status)
		}
		ok, err := c.ledger.CompareAndSetStatus(ctx, repository.Transition{
			ShowingID:  showingID,
			Label:      label,
			FromStatus: seat.Status,
			FromHolder: seat.HolderID,
			ToStatus:   status,
		})
		if err != nil {
			return fmt.Errorf("set status %s: %w", label, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, label)
		}
		if seat.Status == model.SeatHeld {
			c.log.Info("hold revoked by admin",
				zap.Uint64("showing_id", showingID),
				zap.String("label", label),
				zap.String("party_id", seat.HolderID),
			)
		}
		seat.Status = status
		seat.HolderID = ""
		seat.HeldAt = nil
		seat.Version++
		out = seat
		publish(realtime.SeatEvent(status, "", label))
		return nil
	})
	return out, err
}

// Expire releases seat if it is still held by the holder recorded in seat.
// It reports false when the seat changed since it was read; that is not an
// error.
func (c *Coordinator) Expire(ctx context.Context, seat model.Seat) (bool, error) {
	if seat.Status != model.SeatHeld || seat.HolderID == "" {
		return false, nil
	}
	released := false
	err := c.hub.Serialize(seat.ShowingID, func(publish func(realtime.Event) uint64) error {
		ok, err := c.ledger.CompareAndSetStatus(ctx, repository.Transition{
			ShowingID:  seat.ShowingID,
			Label:      seat.Label,
			FromStatus: model.SeatHeld,
			FromHolder: seat.HolderID,
			ToStatus:   model.SeatAvailable,
		})
		if err != nil || !ok {
			return err
		}
		released = true
		publish(realtime.SeatEvent(model.SeatAvailable, "", seat.Label))
		return nil
	})
	return released, err
}

// ReleaseAllByParty releases every seat held by partyID in any showing and
// returns how many were released.  Seats whose release fails are logged and
// skipped; the sweeper reclaims them later.
func (c *Coordinator) ReleaseAllByParty(ctx context.Context, partyID string) (int, error) {
	if partyID == "" {
		return 0, nil
	}
	seats, err := c.ledger.HeldByParty(ctx, partyID)
	if err != nil {
		return 0, fmt.Errorf("list holds of %s: %w", partyID, err)
	}
	n := 0
	for _, seat := range seats {
		ok, err := c.Expire(ctx, seat)
		if err != nil {
			c.log.Warn("release hold failed",
				zap.String("party_id", partyID),
				zap.Uint64("showing_id", seat.ShowingID),
				zap.String("label", seat.Label),
				zap.Error(err),
			)
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		c.log.Info("released holds", zap.String("party_id", partyID), zap.Int("count", n))
	}
	return n, nil
}

// AnnounceShowingStatus broadcasts a showing lifecycle change to its
// watchers.  Seat state is not touched.
func (c *Coordinator) AnnounceShowingStatus(showingID uint64, status model.ShowingStatus) error {
	if !status.Valid() {
		return ErrInvalidRequest
	}
	c.hub.Publish(showingID, realtime.Event{
		Type:   realtime.EventShowingStatus,
		Status: string(status),
		At:     c.now().UTC(),
	})
	return nil
}

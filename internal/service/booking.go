package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
	"github.com/iliyamo/cinema-seat-realtime/internal/queue"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

// BookingNotifier receives booking lifecycle events after they commit.
// Implementations must not block the caller for long; failures are theirs
// to log.
type BookingNotifier interface {
	Notify(ctx context.Context, ev queue.BookingEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, queue.BookingEvent) {}

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	PartyID string
	Admin   bool
}

// FinalizeRequest carries everything needed to turn holds into a booking.
type FinalizeRequest struct {
	ShowingID     uint64
	PartyID       string
	Labels        []string
	Customer      model.Customer
	PaymentMethod model.PaymentMethod
}

const codeAttempts = 3

// NewBookingCode returns a fresh human-presentable booking code such as
// "BK7QF3M2KD9A".
func NewBookingCode() string {
	return "BK" + strings.ToUpper(shortuuid.New()[:10])
}

// BookingManager converts holds into bookings and moves bookings through
// their lifecycle.
type BookingManager struct {
	ledger   repository.SeatLedger
	store    repository.BookingStore
	hub      Broadcaster
	notifier BookingNotifier
	log      *zap.Logger
	newCode  func() string
}

// NewBookingManager wires a manager.  notifier may be nil.
func NewBookingManager(ledger repository.SeatLedger, store repository.BookingStore, hub Broadcaster, notifier BookingNotifier, log *zap.Logger) *BookingManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingManager{
		ledger:   ledger,
		store:    store,
		hub:      hub,
		notifier: notifier,
		log:      log.Named("bookings"),
		newCode:  NewBookingCode,
	}
}

func validateFinalize(req FinalizeRequest) error {
	if !model.ValidPartyID(req.PartyID) {
		return fmt.Errorf("%w: invalid party id", ErrInvalidRequest)
	}
	if len(req.Labels) == 0 {
		return fmt.Errorf("%w: at least one seat is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(req.Labels))
	for _, l := range req.Labels {
		if l == "" {
			return fmt.Errorf("%w: empty seat label", ErrInvalidRequest)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: seat %s listed twice", ErrInvalidRequest, l)
		}
		seen[l] = struct{}{}
	}
	if strings.TrimSpace(req.Customer.Name) == "" || strings.TrimSpace(req.Customer.Email) == "" {
		return fmt.Errorf("%w: customer name and email are required", ErrInvalidRequest)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, req.PaymentMethod)
	}
	return nil
}

// Finalize books every requested seat for the party or none of them.  Each
// seat must exist and be held by the party; the total is the sum of the
// stored seat prices.
func (m *BookingManager) Finalize(ctx context.Context, req FinalizeRequest) (*model.Booking, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentCash
	}
	if err := validateFinalize(req); err != nil {
		return nil, err
	}

	var booking *model.Booking
	err := m.hub.Serialize(req.ShowingID, func(publish func(realtime.Event) uint64) error {
		var (
			total   uint32
			notHeld []string
			flips   = make([]repository.Transition, 0, len(req.Labels))
		)
		for _, label := range req.Labels {
			seat, err := m.ledger.Seat(ctx, req.ShowingID, label)
			if errors.Is(err, repository.ErrSeatNotFound) {
				return fmt.Errorf("%w: unknown seat %s", ErrInvalidRequest, label)
			}
			if err != nil {
				return fmt.Errorf("load seat %s: %w", label, err)
			}
			if !seat.HeldBy(req.PartyID) {
				notHeld = append(notHeld, label)
				continue
			}
			total += seat.PriceCents
			flips = append(flips, repository.Transition{
				ShowingID:  req.ShowingID,
				Label:      label,
				FromStatus: model.SeatHeld,
				FromHolder: req.PartyID,
				ToStatus:   model.SeatBooked,
			})
		}
		if len(notHeld) > 0 {
			return &SeatNoLongerHeldError{Labels: notHeld}
		}

		b := &model.Booking{
			ShowingID:     req.ShowingID,
			PartyID:       req.PartyID,
			Customer:      req.Customer,
			SeatLabels:    append([]string(nil), req.Labels...),
			TotalCents:    total,
			Status:        model.BookingPending,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: model.PaymentPending,
		}
		var err error
		for attempt := 0; attempt < codeAttempts; attempt++ {
			b.Code = m.newCode()
			err = m.store.CreateBooking(ctx, b, flips)
			if !errors.Is(err, repository.ErrDuplicateCode) {
				break
			}
		}
		var conflict *repository.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			return &SeatNoLongerHeldError{Labels: conflict.Labels}
		case err != nil:
			m.log.Error("booking write failed",
				zap.Uint64("showing_id", req.ShowingID),
				zap.String("party_id", req.PartyID),
				zap.Error(err),
			)
			return ErrTransactionFailed
		}
		booking = b

		ev := realtime.SeatEvent(model.SeatBooked, req.PartyID, b.SeatLabels...)
		ev.BookingCode = b.Code
		emit(ctx, publish, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("booking finalized",
		zap.String("code", booking.Code),
		zap.Uint64("showing_id", booking.ShowingID),
		zap.Strings("seats", booking.SeatLabels),
		zap.Uint32("total_cents", booking.TotalCents),
	)
	m.notify(ctx, queue.KindFinalized, booking)
	return booking, nil
}

func (m *BookingManager) notify(ctx context.Context, kind string, b *model.Booking) {
	m.notifier.Notify(ctx, queue.BookingEvent{
		Kind:          kind,
		Code:          b.Code,
		ShowingID:     b.ShowingID,
		PartyID:       b.PartyID,
		CustomerEmail: b.Customer.Email,
		SeatLabels:    b.SeatLabels,
		TotalCents:    b.TotalCents,
		Status:        string(b.Status),
		PaymentMethod: string(b.PaymentMethod),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *BookingManager) load(ctx context.Context, code string) (*model.Booking, error) {
	b, err := m.store.BookingByCode(ctx, code)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", code, err)
	}
	return b, nil
}

// Get returns the booking with the given code.
func (m *BookingManager) Get(ctx context.Context, code string) (*model.Booking, error) {
	return m.load(ctx, code)
}

// List returns the bookings of a party, newest first.
func (m *BookingManager) List(ctx context.Context, partyID string) ([]model.Booking, error) {
	if partyID == "" {
		return nil, ErrInvalidRequest
	}
	return m.store.BookingsByParty(ctx, partyID)
}

// Cancel cancels a booking on behalf of its owner or an admin and returns
// every seat to available in the same transaction.
func (m *BookingManager) Cancel(ctx context.Context, code string, actor Actor) (*model.Booking, error) {
	b, err := m.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && (actor.PartyID == "" || actor.PartyID != b.PartyID) {
		return nil, ErrForbidden
	}
	if !b.Cancellable() {
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingNotCancellable, b.Status)
	}

	err = m.hub.Serialize(b.ShowingID, func(publish func(realtime.Event) uint64) error {
		// Confirm and Complete may have run since the first read.
		cur, err := m.load(ctx, code)
		if err != nil {
			return err
		}
		if !cur.Cancellable() {
			return fmt.Errorf("%w: booking is %s", ErrBookingNotCancellable, cur.Status)
		}
		b = cur

		flips := make([]repository.Transition, 0, len(b.SeatLabels))
		for _, label := range b.SeatLabels {
			flips = append(flips, repository.Transition{
				ShowingID:  b.ShowingID,
				Label:      label,
				FromStatus: model.SeatBooked,
				ToStatus:   model.SeatAvailable,
			})
		}
		err = m.store.TransitionBooking(ctx, b.Code, b.Status, model.BookingCancelled, flips)
		var conflict *repository.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			m.log.Error("booked seats out of sync with booking",
				zap.String("code", b.Code),
				zap.Strings("seats", conflict.Labels),
			)
			return ErrTransactionFailed
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%w: booking changed concurrently", ErrBookingNotCancellable)
		case err != nil:
			m.log.Error("cancel write failed", zap.String("code", b.Code), zap.Error(err))
			return ErrTransactionFailed
		}
		b.Status = model.BookingCancelled

		ev := realtime.SeatEvent(model.SeatAvailable, "", b.SeatLabels...)
		ev.BookingCode = b.Code
		publish(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("booking cancelled", zap.String("code", b.Code), zap.Bool("by_admin", actor.Admin))
	m.notify(ctx, queue.KindCancelled, b)
	return b, nil
}

// Confirm moves a pending booking to confirmed.
func (m *BookingManager) Confirm(ctx context.Context, code string) (*model.Booking, error) {
	return m.advance(ctx, code, model.BookingPending, model.BookingConfirmed, queue.KindConfirmed)
}

// Complete moves a confirmed booking to completed.
func (m *BookingManager) Complete(ctx context.Context, code string) (*model.Booking, error) {
	return m.advance(ctx, code, model.BookingConfirmed, model.BookingCompleted, queue.KindCompleted)
}

func (m *BookingManager) advance(ctx context.Context, code string, from, to model.BookingStatus, kind string) (*model.Booking, error) {
	b, err := m.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if b.Status != from {
		return nil, fmt.Errorf("%w: booking is %s, expected %s", ErrInvalidTransition, b.Status, from)
	}
	err = m.hub.Serialize(b.ShowingID, func(publish func(realtime.Event) uint64) error {
		err := m.store.TransitionBooking(ctx, b.Code, from, to, nil)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: booking changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			m.log.Error("booking transition failed", zap.String("code", b.Code), zap.Error(err))
			return ErrTransactionFailed
		}
		b.Status = to
		publish(realtime.Event{
			Type:        realtime.EventBookingUpdate,
			BookingCode: b.Code,
			Labels:      b.SeatLabels,
			Status:      string(to),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.notify(ctx, kind, b)
	return b, nil
}

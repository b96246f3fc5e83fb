package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
)

// Sweeper periodically releases holds older than the hold timeout.
type Sweeper struct {
	ledger   repository.SeatLedger
	coord    *Coordinator
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewSweeper returns a sweeper.  interval and timeout are independent.
func NewSweeper(ledger repository.SeatLedger, coord *Coordinator, interval, timeout time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		ledger:   ledger,
		coord:    coord,
		interval: interval,
		timeout:  timeout,
		log:      log.Named("sweeper"),
		now:      time.Now,
	}
}

// SetClock replaces the time source used to compute the cutoff.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("hold sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("hold_timeout", s.timeout),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("hold sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce releases every stale hold and returns how many it released.
// Each release is an independent compare-and-set against the seat's own
// holder; seats that changed since the scan are skipped silently.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.timeout)
	stale, err := s.ledger.StaleHolds(ctx, cutoff)
	if err != nil {
		s.log.Error("list stale holds failed", zap.Error(err))
		return 0
	}
	released := 0
	for _, seat := range stale {
		ok, err := s.coord.Expire(ctx, seat)
		if err != nil {
			s.log.Warn("expire hold failed",
				zap.Uint64("showing_id", seat.ShowingID),
				zap.String("label", seat.Label),
				zap.Error(err),
			)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 || len(stale) > 0 {
		s.log.Info("sweep finished", zap.Int("stale", len(stale)), zap.Int("released", released))
	}
	return released
}

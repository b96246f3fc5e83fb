package repository // repository defines data access for showing seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// SeatRepo is the MySQL implementation of SeatLedger.  Seat rows live in
// `showing_seats` keyed by (showing_id, label).
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// DB exposes the underlying handle so callers can open transactions.
func (r *SeatRepo) DB() *sql.DB { return r.db }

const seatColumns = `showing_id, label, row_label, col, class, price_cents, status, holder_id, held_at, version`

// seatOrder sorts rows A..Z before AA..AZ, then by column.
const seatOrder = `ORDER BY CHAR_LENGTH(row_label), row_label, col`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(s rowScanner) (model.Seat, error) {
	var seat model.Seat
	var holder sql.NullString
	var heldAt sql.NullTime
	if err := s.Scan(&seat.ShowingID, &seat.Label, &seat.Row, &seat.Column, &seat.Class,
		&seat.PriceCents, &seat.Status, &holder, &heldAt, &seat.Version); err != nil {
		return model.Seat{}, err
	}
	if holder.Valid {
		seat.HolderID = holder.String
	}
	if heldAt.Valid {
		t := heldAt.Time.UTC()
		seat.HeldAt = &t
	}
	return seat, nil
}

func (r *SeatRepo) querySeats(ctx context.Context, q string, args ...any) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatsForShowing retrieves all seats of a showing in layout order.
func (r *SeatRepo) SeatsForShowing(ctx context.Context, showingID uint64) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM showing_seats WHERE showing_id = ? ` + seatOrder
	return r.querySeats(ctx, q, showingID)
}

// Seat fetches a single seat.  It returns ErrSeatNotFound when no row matches.
func (r *SeatRepo) Seat(ctx context.Context, showingID uint64, label string) (model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM showing_seats WHERE showing_id = ? AND label = ?`
	seat, err := scanSeat(r.db.QueryRowContext(ctx, q, showingID, label))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrSeatNotFound
	}
	return seat, err
}

// StaleHolds lists held seats across all showings whose hold began before cutoff.
func (r *SeatRepo) StaleHolds(ctx context.Context, cutoff time.Time) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM showing_seats WHERE status = 'held' AND held_at < ? ORDER BY held_at`
	return r.querySeats(ctx, q, cutoff.UTC())
}

// HeldByParty lists the seats currently held by partyID.
func (r *SeatRepo) HeldByParty(ctx context.Context, partyID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM showing_seats WHERE status = 'held' AND holder_id = ? ORDER BY showing_id, held_at`
	return r.querySeats(ctx, q, partyID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// compareAndSet issues the guarded UPDATE.  holder_id is compared with the
// NULL-safe operator so that "no holder" matches a NULL column.  The
// version bump guarantees a changed row, so RowsAffected is 1 exactly
// when the expectation held.
func compareAndSet(ctx context.Context, ex execer, t Transition) (bool, error) {
	const q = `UPDATE showing_seats
	           SET status = ?, holder_id = ?, held_at = ?, version = version + 1
	           WHERE showing_id = ? AND label = ? AND status = ? AND holder_id <=> ?`
	var holder, heldAt any
	if t.ToStatus == model.SeatHeld {
		holder = t.ToHolder
		heldAt = t.At.UTC()
	}
	res, err := ex.ExecContext(ctx, q,
		t.ToStatus, holder, heldAt,
		t.ShowingID, t.Label, t.FromStatus, nullableHolder(t.FromHolder),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullableHolder(h string) any {
	if h == "" {
		return nil
	}
	return h
}

// CompareAndSetStatus applies a single seat transition outside of any
// caller transaction.
func (r *SeatRepo) CompareAndSetStatus(ctx context.Context, t Transition) (bool, error) {
	return compareAndSet(ctx, r.db, t)
}

// CompareAndSetStatusTx applies a seat transition within the provided
// transaction.  The caller must commit or roll back.
func (r *SeatRepo) CompareAndSetStatusTx(ctx context.Context, tx *sql.Tx, t Transition) (bool, error) {
	return compareAndSet(ctx, tx, t)
}

// applyFlipsTx runs every transition in tx and collects the labels whose
// compare-and-set failed.
func (r *SeatRepo) applyFlipsTx(ctx context.Context, tx *sql.Tx, flips []Transition) error {
	var lost []string
	for _, f := range flips {
		ok, err := r.CompareAndSetStatusTx(ctx, tx, f)
		if err != nil {
			return err
		}
		if !ok {
			lost = append(lost, f.Label)
		}
	}
	if len(lost) > 0 {
		return &SeatConflictError{Labels: lost}
	}
	return nil
}

// SeedSeats inserts multiple seats in a single statement.  All seats start
// available.  A duplicate key maps to ErrConflict.
func (r *SeatRepo) SeedSeats(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO showing_seats (showing_id, label, row_label, col, class, price_cents, status, version) VALUES `)
	args := make([]any, 0, len(seats)*7)
	for i, s := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, 'available', 0)")
		args = append(args, s.ShowingID, s.Label, s.Row, s.Column, s.Class, s.PriceCents)
	}
	_, err := r.db.ExecContext(ctx, b.String(), args...)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// isDuplicateKey reports whether err is MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

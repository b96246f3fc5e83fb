package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// BookingRepo is the MySQL implementation of BookingStore.  Bookings are
// stored in `bookings`; their seats in `booking_seats`.  Seat transitions
// are delegated to SeatRepo so that both writes share one transaction.
// All timestamp fields are stored in UTC.
type BookingRepo struct {
	db    *sql.DB
	seats *SeatRepo
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB, seats *SeatRepo) *BookingRepo {
	if db == nil || seats == nil {
		panic("nil dependency passed to NewBookingRepo")
	}
	return &BookingRepo{db: db, seats: seats}
}

// CreateBooking inserts the booking, its seat rows and all seat flips in a
// single transaction.  If any flip loses its compare-and-set the
// transaction is rolled back and a *SeatConflictError is returned.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking, flips []Transition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const q = `INSERT INTO bookings (code, showing_id, party_id, customer_name, customer_email, customer_phone,
	                                 total_cents, status, payment_method, payment_status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Code, b.ShowingID, b.PartyID, b.Customer.Name, b.Customer.Email, b.Customer.Phone,
		b.TotalCents, b.Status, b.PaymentMethod, b.PaymentStatus, now, now,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := insertBookingSeatsTx(ctx, tx, uint64(id), b.ShowingID, b.SeatLabels); err != nil {
		return err
	}
	if err := r.seats.applyFlipsTx(ctx, tx, flips); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID = uint64(id)
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// insertBookingSeatsTx inserts one booking_seats row per label, keeping the
// requested order in the position column.
func insertBookingSeatsTx(ctx context.Context, tx *sql.Tx, bookingID, showingID uint64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, showing_id, label, position) VALUES `
	args := make([]any, 0, len(labels)*4)
	for i, l := range labels {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, bookingID, showingID, l, i)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// TransitionBooking moves a booking from one status to another and applies
// the seat flips in the same transaction.
func (r *BookingRepo) TransitionBooking(ctx context.Context, code string, from, to model.BookingStatus, flips []Transition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE bookings SET status = ?, updated_at = ? WHERE code = ? AND status = ?`
	res, err := tx.ExecContext(ctx, upd, to, time.Now().UTC(), code, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE code = ?`, code).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	if err := r.seats.applyFlipsTx(ctx, tx, flips); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const bookingColumns = `id, code, showing_id, party_id, customer_name, customer_email, customer_phone,
                        total_cents, status, payment_method, payment_status, created_at, updated_at`

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	err := s.Scan(&b.ID, &b.Code, &b.ShowingID, &b.PartyID, &b.Customer.Name, &b.Customer.Email,
		&b.Customer.Phone, &b.TotalCents, &b.Status, &b.PaymentMethod, &b.PaymentStatus,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// BookingByCode returns a booking and its seats.  ErrBookingNotFound is
// returned when the code is unknown.
func (r *BookingRepo) BookingByCode(ctx context.Context, code string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE code = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []model.Booking{b}
	if err := r.loadSeats(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// BookingsByParty returns all bookings made by partyID, newest first.  When
// the party has no bookings an empty slice is returned.
func (r *BookingRepo) BookingsByParty(ctx context.Context, partyID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE party_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.loadSeats(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadSeats populates SeatLabels for all bookings in a single query.
func (r *BookingRepo) loadSeats(ctx context.Context, bookings []model.Booking) error {
	index := make(map[uint64]int, len(bookings))
	ids := make([]any, 0, len(bookings))
	placeholders := make([]string, 0, len(bookings))
	for i := range bookings {
		bookings[i].SeatLabels = []string{}
		index[bookings[i].ID] = i
		ids = append(ids, bookings[i].ID)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT booking_id, label FROM booking_seats
	      WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY booking_id, position`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			bookings[i].SeatLabels = append(bookings[i].SeatLabels, label)
		}
	}
	return rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
)

// BookingRepo persists bookings.  The assigned-decorator set and the
// rejectedBy set live in booking_decorators and booking_rejections and are
// only written together with the booking row, inside a transaction that
// locks that booking alone.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = `id,booked_by_email,customer_name,service_id,service_name,booking_type,quantity,unit_price,
payable_amount,status,payment_status,transaction_id,amount_paid,event_date,location,notes,
assigned_at,paid_at,created_at,updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var serviceID, txID sql.NullString
	var eventDate, assignedAt, paidAt sql.NullTime
	err := row.Scan(&b.ID, &b.BookedByEmail, &b.CustomerName, &serviceID, &b.ServiceName, &b.BookingType,
		&b.Quantity, &b.UnitPrice, &b.PayableAmount, &b.Status, &b.PaymentStatus, &txID, &b.AmountPaid,
		&eventDate, &b.Location, &b.Notes, &assignedAt, &paidAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.ServiceID = strPtr(serviceID)
	b.TransactionID = strPtr(txID)
	b.EventDate = timePtr(eventDate)
	b.AssignedAt = timePtr(assignedAt)
	b.PaidAt = timePtr(paidAt)
	b.AssignedDecoratorIDs = []string{}
	b.RejectedBy = []string{}
	return &b, nil
}

// Create inserts b.  Status and payment status must already be set.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.BookedByEmail = normalizeEmail(b.BookedByEmail)
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO bookings ("+bookingColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		b.ID, b.BookedByEmail, b.CustomerName, nullString(b.ServiceID), b.ServiceName, b.BookingType,
		b.Quantity, b.UnitPrice, b.PayableAmount, b.Status, b.PaymentStatus, nullString(b.TransactionID),
		b.AmountPaid, nullTime(b.EventDate), b.Location, b.Notes, nullTime(b.AssignedAt), nullTime(b.PaidAt),
		b.CreatedAt, b.UpdatedAt)
	if b.AssignedDecoratorIDs == nil {
		b.AssignedDecoratorIDs = []string{}
	}
	if b.RejectedBy == nil {
		b.RejectedBy = []string{}
	}
	return err
}

// GetByID returns the booking with its decorator sets.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.DB.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSets(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByEmail returns the bookings placed by email, newest first.
func (r *BookingRepo) ListByEmail(ctx context.Context, email string) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE booked_by_email=? ORDER BY created_at DESC",
		normalizeEmail(email))
}

// ListByDecorator returns the bookings whose assigned set contains decoratorID.
func (r *BookingRepo) ListByDecorator(ctx context.Context, decoratorID string) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+` FROM bookings
		WHERE id IN (SELECT booking_id FROM booking_decorators WHERE decorator_id=?)
		ORDER BY created_at DESC`, decoratorID)
}

// ListAll returns every booking, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings ORDER BY created_at DESC")
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ptrs []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadSets(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(ptrs))
	for _, b := range ptrs {
		out = append(out, *b)
	}
	return out, nil
}

func (r *BookingRepo) loadSets(ctx context.Context, bs []*model.Booking) error {
	if len(bs) == 0 {
		return nil
	}
	byID := make(map[string]*model.Booking, len(bs))
	args := make([]any, 0, len(bs))
	for _, b := range bs {
		byID[b.ID] = b
		args = append(args, b.ID)
	}
	in := placeholders(len(bs))
	q := `SELECT booking_id, decorator_id, 'assigned' FROM booking_decorators WHERE booking_id IN (` + in + `)
	      UNION ALL
	      SELECT booking_id, decorator_id, 'rejected' FROM booking_rejections WHERE booking_id IN (` + in + `)`
	rows, err := r.DB.QueryContext(ctx, q, append(args, args...)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, decoratorID, set string
		if err := rows.Scan(&bookingID, &decoratorID, &set); err != nil {
			return err
		}
		b := byID[bookingID]
		if b == nil {
			continue
		}
		if set == "assigned" {
			b.AssignedDecoratorIDs = append(b.AssignedDecoratorIDs, decoratorID)
		} else {
			b.RejectedBy = append(b.RejectedBy, decoratorID)
		}
	}
	return rows.Err()
}

// Delete removes the booking; child rows go with it (ON DELETE CASCADE).
func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM bookings WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func lockBooking(ctx context.Context, tx *sql.Tx, id string) (status string, err error) {
	err = tx.QueryRowContext(ctx, "SELECT status FROM bookings WHERE id=? FOR UPDATE", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

func hasDecorator(ctx context.Context, tx *sql.Tx, bookingID, decoratorID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM booking_decorators WHERE booking_id=? AND decorator_id=?", bookingID, decoratorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// MarkAssigned sets the booking to assigned, adds decoratorID to its
// assigned set and stamps assigned_at.  ErrNoChange means the booking was
// already assigned to that decorator.
func (r *BookingRepo) MarkAssigned(ctx context.Context, bookingID, decoratorID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		status, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		member, err := hasDecorator(ctx, tx, bookingID, decoratorID)
		if err != nil {
			return err
		}
		if member && status == model.BookingAssigned {
			return ErrNoChange
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO booking_decorators (booking_id, decorator_id) VALUES (?,?)", bookingID, decoratorID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE bookings SET status=?, assigned_at=?, updated_at=? WHERE id=?",
			model.BookingAssigned, at, at, bookingID)
		return err
	})
}

// SetWorkStatus moves the booking to status, guarded by decoratorID being in
// its assigned set and by the current status being one of
// model.WorkStatusSources(status).  A missing booking or pairing is
// ErrNotFound; a disallowed source status is ErrNoChange.
func (r *BookingRepo) SetWorkStatus(ctx context.Context, bookingID, decoratorID, status string, at time.Time) error {
	sources := model.WorkStatusSources(status)
	if len(sources) == 0 {
		return ErrNoChange
	}
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := lockBooking(ctx, tx, bookingID); err != nil {
			return err
		}
		member, err := hasDecorator(ctx, tx, bookingID, decoratorID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotFound
		}
		args := []any{status, at, bookingID}
		for _, s := range sources {
			args = append(args, s)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE bookings SET status=?, updated_at=? WHERE id=? AND status IN ("+placeholders(len(sources))+")",
			args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNoChange
		}
		return nil
	})
}

// RecordRejection moves the booking to awaiting-reassignment, adds
// decoratorID to rejectedBy, removes it from the assigned set and clears
// assigned_at.  ErrNotFound when the booking does not list decoratorID.
func (r *BookingRepo) RecordRejection(ctx context.Context, bookingID, decoratorID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := lockBooking(ctx, tx, bookingID); err != nil {
			return err
		}
		del, err := tx.ExecContext(ctx,
			"DELETE FROM booking_decorators WHERE booking_id=? AND decorator_id=?", bookingID, decoratorID)
		if err != nil {
			return err
		}
		if n, _ := del.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO booking_rejections (booking_id, decorator_id, rejected_at) VALUES (?,?,?)",
			bookingID, decoratorID, at); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE bookings SET status=?, assigned_at=NULL, updated_at=? WHERE id=?",
			model.BookingAwaitingReassignment, at, bookingID)
		return err
	})
}

// UpdateStatus moves the booking from one status to another.  ErrNoChange
// means the booking exists but is not in from.
func (r *BookingRepo) UpdateStatus(ctx context.Context, bookingID, from, to string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE bookings SET status=?, updated_at=? WHERE id=? AND status=?", to, at, bookingID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM bookings WHERE id=?", bookingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

// MarkPaid records a settled payment and confirms the booking, guarded by
// the booking not being paid already.  A missing booking and an already
// paid one are both ErrNotFound.
func (r *BookingRepo) MarkPaid(ctx context.Context, bookingID string, p model.PaymentUpdate) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bookings SET status=?, payment_status=?, transaction_id=?, amount_paid=?, paid_at=?, updated_at=?
		 WHERE id=? AND payment_status<>?`,
		model.BookingConfirmed, model.PaymentPaid, p.TransactionID, p.AmountPaid, p.PaidAt, p.PaidAt,
		bookingID, model.PaymentPaid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Assignments lists every (decorator, booking) pair in booking assigned
// sets together with the booking status.
func (r *BookingRepo) Assignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT bd.decorator_id, bd.booking_id, b.status FROM booking_decorators bd JOIN bookings b ON b.id = bd.booking_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.DecoratorID, &a.BookingID, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

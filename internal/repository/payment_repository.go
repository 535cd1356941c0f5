package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
)

// PaymentRepo is the append-only payment ledger.  Rows are unique per
// (booking_id, transaction_id).
type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

const paymentColumns = "id,booking_id,transaction_id,amount,currency,payer_email,service_name,paid_at"

// InsertIfAbsent writes p unless a row with the same booking and
// transaction already exists.  inserted reports whether a row was written.
func (r *PaymentRepo) InsertIfAbsent(ctx context.Context, p *model.Payment) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.PayerEmail = normalizeEmail(p.PayerEmail)
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO payments ("+paymentColumns+") VALUES (?,?,?,?,?,?,?,?)",
		p.ID, p.BookingID, p.TransactionID, p.Amount, p.Currency, p.PayerEmail, p.ServiceName, p.PaidAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ListByEmail returns the payments made by email, newest first.
func (r *PaymentRepo) ListByEmail(ctx context.Context, email string) ([]model.Payment, error) {
	return r.list(ctx, "SELECT "+paymentColumns+" FROM payments WHERE payer_email=? ORDER BY paid_at DESC", normalizeEmail(email))
}

// ListAll returns every payment, newest first.
func (r *PaymentRepo) ListAll(ctx context.Context) ([]model.Payment, error) {
	return r.list(ctx, "SELECT "+paymentColumns+" FROM payments ORDER BY paid_at DESC")
}

func (r *PaymentRepo) list(ctx context.Context, q string, args ...any) ([]model.Payment, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.Amount, &p.Currency,
			&p.PayerEmail, &p.ServiceName, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EarningRepo is the append-only decorator earnings ledger, unique per
// booking.
type EarningRepo struct{ DB *sql.DB }

func NewEarningRepo(db *sql.DB) *EarningRepo { return &EarningRepo{DB: db} }

const earningColumns = "id,booking_id,decorator_id,service_price,commission_rate,amount_earned,payout_status,created_at,paid_out_at"

// InsertIfAbsent writes e unless the booking already has an earning row.
func (r *EarningRepo) InsertIfAbsent(ctx context.Context, e *model.Earning) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO decorator_earnings ("+earningColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		e.ID, e.BookingID, e.DecoratorID, e.ServicePrice, e.CommissionRate, e.AmountEarned,
		e.PayoutStatus, e.CreatedAt, nullTime(e.PaidOutAt))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ListByDecorator returns the earnings of decoratorID, newest first.
func (r *EarningRepo) ListByDecorator(ctx context.Context, decoratorID string) ([]model.Earning, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+earningColumns+" FROM decorator_earnings WHERE decorator_id=? ORDER BY created_at DESC", decoratorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Earning{}
	for rows.Next() {
		var e model.Earning
		var paidOut sql.NullTime
		if err := rows.Scan(&e.ID, &e.BookingID, &e.DecoratorID, &e.ServicePrice, &e.CommissionRate,
			&e.AmountEarned, &e.PayoutStatus, &e.CreatedAt, &paidOut); err != nil {
			return nil, err
		}
		e.PaidOutAt = timePtr(paidOut)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Exists reports whether bookingID already has an earning row.
func (r *EarningRepo) Exists(ctx context.Context, bookingID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM decorator_earnings WHERE booking_id=?", bookingID).Scan(&n)
	return n > 0, err
}

// MarkPaidOut moves a pending earning to paid.  ErrNoChange means the
// earning was already paid out.
func (r *EarningRepo) MarkPaidOut(ctx context.Context, bookingID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE decorator_earnings SET payout_status=?, paid_out_at=? WHERE booking_id=? AND payout_status=?",
		model.PayoutPaid, at, bookingID, model.PayoutPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	ok, err := r.Exists(ctx, bookingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return ErrNoChange
}

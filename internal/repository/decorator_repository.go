package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
)

// DecoratorRepo persists decorator records.  The assigned and finished
// booking sets live in decorator_bookings and decorator_finished; every
// method that changes them also changes the decorator row, inside one
// transaction that locks only that decorator.
type DecoratorRepo struct{ DB *sql.DB }

func NewDecoratorRepo(db *sql.DB) *DecoratorRepo { return &DecoratorRepo{DB: db} }

const decoratorColumns = `id,email,name,phone,photo_url,bio,city,address,specialization,experience_years,
application_status,is_verified,account_status,is_available,current_project,
approved_at,rejected_at,disabled_at,created_at,updated_at`

func scanDecorator(row interface{ Scan(...any) error }) (*model.Decorator, error) {
	var d model.Decorator
	var current sql.NullString
	var approvedAt, rejectedAt, disabledAt sql.NullTime
	err := row.Scan(&d.ID, &d.Email, &d.Name, &d.Phone, &d.PhotoURL, &d.Bio,
		&d.ServiceLocation.City, &d.ServiceLocation.Address, &d.Specialization, &d.ExperienceYears,
		&d.ApplicationStatus, &d.IsVerified, &d.AccountStatus, &d.IsAvailable, &current,
		&approvedAt, &rejectedAt, &disabledAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.CurrentProject = strPtr(current)
	d.ApprovedAt = timePtr(approvedAt)
	d.RejectedAt = timePtr(rejectedAt)
	d.DisabledAt = timePtr(disabledAt)
	d.AssignedBookings = []string{}
	d.FinishedProjectIDs = []string{}
	return &d, nil
}

// Create inserts d.  A second application with the same email fails with
// ErrDuplicate through the unique index on decorators.email.
func (r *DecoratorRepo) Create(ctx context.Context, d *model.Decorator) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Email = normalizeEmail(d.Email)
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO decorators ("+decoratorColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		d.ID, d.Email, d.Name, d.Phone, d.PhotoURL, d.Bio, d.ServiceLocation.City, d.ServiceLocation.Address,
		d.Specialization, d.ExperienceYears, d.ApplicationStatus, d.IsVerified, d.AccountStatus, d.IsAvailable,
		nullString(d.CurrentProject), nullTime(d.ApprovedAt), nullTime(d.RejectedAt), nullTime(d.DisabledAt),
		d.CreatedAt, d.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the decorator with its booking sets.
func (r *DecoratorRepo) GetByID(ctx context.Context, id string) (*model.Decorator, error) {
	return r.getOne(ctx, "id=?", id)
}

// GetByEmail returns the decorator registered under email.
func (r *DecoratorRepo) GetByEmail(ctx context.Context, email string) (*model.Decorator, error) {
	return r.getOne(ctx, "email=?", normalizeEmail(email))
}

func (r *DecoratorRepo) getOne(ctx context.Context, where string, arg any) (*model.Decorator, error) {
	d, err := scanDecorator(r.DB.QueryRowContext(ctx, "SELECT "+decoratorColumns+" FROM decorators WHERE "+where+" LIMIT 1", arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSets(ctx, []*model.Decorator{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns decorators matching f, newest first.
func (r *DecoratorRepo) List(ctx context.Context, f model.DecoratorFilter) ([]model.Decorator, error) {
	var conds []string
	var args []any
	if f.ApplicationStatus != "" {
		conds = append(conds, "application_status=?")
		args = append(args, f.ApplicationStatus)
	}
	if f.IsAvailable != nil {
		conds = append(conds, "is_available=?")
		args = append(args, *f.IsAvailable)
	}
	if f.City != "" {
		conds = append(conds, "city=?")
		args = append(args, f.City)
	}
	if f.Specialization != "" {
		conds = append(conds, "specialization=?")
		args = append(args, f.Specialization)
	}
	q := "SELECT " + decoratorColumns + " FROM decorators"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ptrs []*model.Decorator
	for rows.Next() {
		d, err := scanDecorator(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadSets(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Decorator, 0, len(ptrs))
	for _, d := range ptrs {
		out = append(out, *d)
	}
	return out, nil
}

// loadSets fills AssignedBookings and FinishedProjectIDs for ds.
func (r *DecoratorRepo) loadSets(ctx context.Context, ds []*model.Decorator) error {
	if len(ds) == 0 {
		return nil
	}
	byID := make(map[string]*model.Decorator, len(ds))
	args := make([]any, 0, len(ds))
	for _, d := range ds {
		byID[d.ID] = d
		args = append(args, d.ID)
	}
	in := placeholders(len(ds))
	q := `SELECT decorator_id, booking_id, 'assigned' FROM decorator_bookings WHERE decorator_id IN (` + in + `)
	      UNION ALL
	      SELECT decorator_id, booking_id, 'finished' FROM decorator_finished WHERE decorator_id IN (` + in + `)`
	rows, err := r.DB.QueryContext(ctx, q, append(args, args...)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var decoratorID, bookingID, set string
		if err := rows.Scan(&decoratorID, &bookingID, &set); err != nil {
			return err
		}
		d := byID[decoratorID]
		if d == nil {
			continue
		}
		if set == "assigned" {
			d.AssignedBookings = append(d.AssignedBookings, bookingID)
		} else {
			d.FinishedProjectIDs = append(d.FinishedProjectIDs, bookingID)
		}
	}
	return rows.Err()
}

// lockDecorator locks the decorator row for the rest of tx and returns its
// application status, availability and current project.
func lockDecorator(ctx context.Context, tx *sql.Tx, id string) (status string, available bool, current sql.NullString, err error) {
	err = tx.QueryRowContext(ctx,
		"SELECT application_status, is_available, current_project FROM decorators WHERE id=? FOR UPDATE", id).
		Scan(&status, &available, &current)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Approve moves a pending or rejected application to approved.  It returns
// ErrNotFound for an unknown id and ErrNoChange when the current state does
// not allow approval.
func (r *DecoratorRepo) Approve(ctx context.Context, id string, at time.Time) error {
	return r.guardedStatus(ctx, id,
		`UPDATE decorators SET application_status=?, is_verified=1, approved_at=?, rejected_at=NULL, updated_at=?
		 WHERE id=? AND application_status IN (?,?)`,
		model.ApplicationApproved, at, at, id, model.ApplicationPending, model.ApplicationRejected)
}

// Reject moves a pending application to rejected.
func (r *DecoratorRepo) Reject(ctx context.Context, id string, at time.Time) error {
	return r.guardedStatus(ctx, id,
		`UPDATE decorators SET application_status=?, is_verified=0, rejected_at=?, updated_at=?
		 WHERE id=? AND application_status=?`,
		model.ApplicationRejected, at, at, id, model.ApplicationPending)
}

// guardedStatus runs a status update whose WHERE clause carries the allowed
// source states and tells a missing record apart from a guard miss.
func (r *DecoratorRepo) guardedStatus(ctx context.Context, id, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM decorators WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

// SetAccountStatus disables or enables the account.  Disabling forces the
// decorator unavailable and stamps disabled_at; enabling clears disabled_at
// and makes it available only when no booking is assigned to it.
func (r *DecoratorRepo) SetAccountStatus(ctx context.Context, id, status string, at time.Time) error {
	var res sql.Result
	var err error
	if status == model.AccountDisabled {
		res, err = r.DB.ExecContext(ctx,
			"UPDATE decorators SET account_status=?, is_available=0, disabled_at=?, updated_at=? WHERE id=?",
			status, at, at, id)
	} else {
		res, err = r.DB.ExecContext(ctx,
			"UPDATE decorators SET account_status=?, "+stillAvailable+", disabled_at=NULL, updated_at=? WHERE id=?",
			status, id, at, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAvailability overrides the availability flag.
func (r *DecoratorRepo) SetAvailability(ctx context.Context, id string, available bool, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE decorators SET is_available=?, updated_at=? WHERE id=?", available, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachBooking marks the decorator unavailable and adds bookingID to its
// assigned set.  ErrNoChange means the decorator was already unavailable
// and already held the booking.
func (r *DecoratorRepo) AttachBooking(ctx context.Context, decoratorID, bookingID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		_, available, _, err := lockDecorator(ctx, tx, decoratorID)
		if err != nil {
			return err
		}
		ins, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO decorator_bookings (decorator_id, booking_id, assigned_at) VALUES (?,?,?)",
			decoratorID, bookingID, at)
		if err != nil {
			return err
		}
		added, _ := ins.RowsAffected()
		if added == 0 && !available {
			return ErrNoChange
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE decorators SET is_available=0, updated_at=? WHERE id=?", at, decoratorID)
		return err
	})
}

// StartProject marks the decorator unavailable and records bookingID as its
// current project.
func (r *DecoratorRepo) StartProject(ctx context.Context, decoratorID, bookingID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE decorators SET is_available=0, current_project=?, updated_at=? WHERE id=?",
		bookingID, at, decoratorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// stillAvailable recomputes availability from the assigned set left after a
// booking is removed from it.
const stillAvailable = "is_available = NOT EXISTS (SELECT 1 FROM decorator_bookings WHERE decorator_id=?)"

// FinishProject removes bookingID from the assigned set and adds it to the
// finished set.  The decorator becomes available once no assignment is
// left and its current project is cleared when it pointed at bookingID.
func (r *DecoratorRepo) FinishProject(ctx context.Context, decoratorID, bookingID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, _, _, err := lockDecorator(ctx, tx, decoratorID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM decorator_bookings WHERE decorator_id=? AND booking_id=?", decoratorID, bookingID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO decorator_finished (decorator_id, booking_id, finished_at) VALUES (?,?,?)",
			decoratorID, bookingID, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE decorators SET "+stillAvailable+
				", current_project=IF(current_project=?, NULL, current_project), updated_at=? WHERE id=?",
			decoratorID, bookingID, at, decoratorID)
		return err
	})
}

// DetachBooking removes bookingID from the assigned set.  Availability and
// the current project follow the same rules as FinishProject.
func (r *DecoratorRepo) DetachBooking(ctx context.Context, decoratorID, bookingID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, _, _, err := lockDecorator(ctx, tx, decoratorID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM decorator_bookings WHERE decorator_id=? AND booking_id=?", decoratorID, bookingID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE decorators SET "+stillAvailable+
				", current_project=IF(current_project=?, NULL, current_project), updated_at=? WHERE id=?",
			decoratorID, bookingID, at, decoratorID)
		return err
	})
}

// Assignments lists every (decorator, booking) pair in decorator assigned sets.
func (r *DecoratorRepo) Assignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT decorator_id, booking_id FROM decorator_bookings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.DecoratorID, &a.BookingID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
)

// UserRepo persists user records in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,photo_url,role,decorator_id,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var decoratorID sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.Role, &decoratorID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.DecoratorID = strPtr(decoratorID)
	return &u, nil
}

// Upsert inserts u when no user with the same email exists.  When one does,
// u is overwritten with the stored record and created is false.
func (r *UserRepo) Upsert(ctx context.Context, u *model.User) (bool, error) {
	u.Email = normalizeEmail(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleClient
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.PhotoURL, u.Role, nullString(u.DecoratorID), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	existing, err := r.GetByEmail(ctx, u.Email)
	if err != nil {
		return false, err
	}
	*u = *existing
	return false, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// LinkDecorator flips the user's role to decorator and stamps the
// decorator back-reference.
func (r *UserRepo) LinkDecorator(ctx context.Context, email, decoratorID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, decorator_id=?, updated_at=? WHERE email=?",
		model.RoleDecorator, decoratorID, at, normalizeEmail(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole overwrites the user's role.
func (r *UserRepo) SetRole(ctx context.Context, email, role string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE email=?", role, at, normalizeEmail(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

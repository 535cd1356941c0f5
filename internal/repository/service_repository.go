package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
)

// ServiceRepo persists catalog items in the `services` table.
type ServiceRepo struct{ DB *sql.DB }

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{DB: db} }

const serviceColumns = "id,name,description,category,cost,unit,image_url,created_by,created_at,updated_at"

func scanService(row interface{ Scan(...any) error }) (*model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.Cost, &s.Unit, &s.ImageURL,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts s, assigning its ID and timestamps.
func (r *ServiceRepo) Create(ctx context.Context, s *model.Service) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO services ("+serviceColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		s.ID, s.Name, s.Description, s.Category, s.Cost, s.Unit, s.ImageURL, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return err
}

// GetByID returns the service or ErrNotFound.
func (r *ServiceRepo) GetByID(ctx context.Context, id string) (*model.Service, error) {
	s, err := scanService(r.DB.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM services WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns services, optionally restricted to one category.
func (r *ServiceRepo) List(ctx context.Context, category string) ([]model.Service, error) {
	q := "SELECT " + serviceColumns + " FROM services"
	args := []any{}
	if category != "" {
		q += " WHERE category=?"
		args = append(args, category)
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of s.
func (r *ServiceRepo) Update(ctx context.Context, s *model.Service) error {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE services SET name=?, description=?, category=?, cost=?, unit=?, image_url=?, updated_at=?
		 WHERE id=?`,
		s.Name, s.Description, s.Category, s.Cost, s.Unit, s.ImageURL, s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the service.
func (r *ServiceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM services WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ServiceCenterRepo persists branches in the `service_centers` table.
type ServiceCenterRepo struct{ DB *sql.DB }

func NewServiceCenterRepo(db *sql.DB) *ServiceCenterRepo { return &ServiceCenterRepo{DB: db} }

// Create inserts c.
func (r *ServiceCenterRepo) Create(ctx context.Context, c *model.ServiceCenter) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO service_centers (id,name,city,address,phone,created_at) VALUES (?,?,?,?,?,?)",
		c.ID, c.Name, c.City, c.Address, c.Phone, c.CreatedAt)
	return err
}

// List returns centers, optionally restricted to one city.
func (r *ServiceCenterRepo) List(ctx context.Context, city string) ([]model.ServiceCenter, error) {
	q := "SELECT id,name,city,address,phone,created_at FROM service_centers"
	args := []any{}
	if city != "" {
		q += " WHERE city=?"
		args = append(args, city)
	}
	q += " ORDER BY name"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ServiceCenter{}
	for rows.Next() {
		var c model.ServiceCenter
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.Address, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes the center.
func (r *ServiceCenterRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM service_centers WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

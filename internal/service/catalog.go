package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/styledecor/internal/model"
)

// CatalogEngine is thin CRUD over services and service centers.
type CatalogEngine struct {
	Services ServiceStore
	Centers  ServiceCenterStore
}

func NewCatalogEngine(s ServiceStore, c ServiceCenterStore) *CatalogEngine {
	return &CatalogEngine{Services: s, Centers: c}
}

// ServiceInput is the editable part of a catalog item.
type ServiceInput struct {
	Name        string
	Description string
	Category    string
	Cost        decimal.Decimal
	Unit        string
	ImageURL    string
}

func (in ServiceInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("service_name is required")
	}
	if !in.Cost.IsPositive() {
		return invalid("cost must be greater than zero")
	}
	return nil
}

func (c *CatalogEngine) CreateService(ctx context.Context, in ServiceInput, createdBy string) (*model.Service, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := &model.Service{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Cost:        in.Cost,
		Unit:        strings.TrimSpace(in.Unit),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CreatedBy:   strings.ToLower(strings.TrimSpace(createdBy)),
	}
	if err := c.Services.Create(ctx, s); err != nil {
		return nil, internal("create service", err)
	}
	return s, nil
}

// UpdateService replaces the editable fields.  Existing bookings keep the
// price they were created with.
func (c *CatalogEngine) UpdateService(ctx context.Context, id string, in ServiceInput) (*model.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed service id")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := &model.Service{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Cost:        in.Cost,
		Unit:        strings.TrimSpace(in.Unit),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if err := c.Services.Update(ctx, s); err != nil {
		return nil, fromStore(err, "service")
	}
	return c.GetService(ctx, id)
}

func (c *CatalogEngine) DeleteService(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("malformed service id")
	}
	if err := c.Services.Delete(ctx, id); err != nil {
		return fromStore(err, "service")
	}
	return nil
}

func (c *CatalogEngine) GetService(ctx context.Context, id string) (*model.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed service id")
	}
	s, err := c.Services.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "service")
	}
	return s, nil
}

func (c *CatalogEngine) ListServices(ctx context.Context, category string) ([]model.Service, error) {
	out, err := c.Services.List(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, internal("list services", err)
	}
	return out, nil
}

func (c *CatalogEngine) CreateCenter(ctx context.Context, sc *model.ServiceCenter) (*model.ServiceCenter, error) {
	sc.Name = strings.TrimSpace(sc.Name)
	sc.City = strings.TrimSpace(sc.City)
	if sc.Name == "" || sc.City == "" {
		return nil, invalid("name and city are required")
	}
	sc.ID = ""
	if err := c.Centers.Create(ctx, sc); err != nil {
		return nil, internal("create service center", err)
	}
	return sc, nil
}

func (c *CatalogEngine) ListCenters(ctx context.Context, city string) ([]model.ServiceCenter, error) {
	out, err := c.Centers.List(ctx, strings.TrimSpace(city))
	if err != nil {
		return nil, internal("list service centers", err)
	}
	return out, nil
}

func (c *CatalogEngine) DeleteCenter(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("malformed service center id")
	}
	if err := c.Centers.Delete(ctx, id); err != nil {
		return fromStore(err, "service center")
	}
	return nil
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is a catalog item.  Cost is the unit price used when a booking is
// created; it is read-only to the booking lifecycle.
type Service struct {
	ID          string          `json:"_id"`
	Name        string          `json:"service_name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"service_category"`
	Cost        decimal.Decimal `json:"cost"`
	Unit        string          `json:"unit,omitempty"` // e.g. per sq-ft, per floor
	ImageURL    string          `json:"image,omitempty"`
	CreatedBy   string          `json:"createdByEmail,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ServiceCenter is a physical branch where consultations take place.
type ServiceCenter struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

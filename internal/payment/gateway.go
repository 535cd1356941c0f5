// Package payment is the hosted payment processor capability used by
// settlement: create a checkout session for an amount, and later resolve a
// session reference back to its authoritative status.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// StatusPaid is the only resolved status settlement accepts.
const StatusPaid = "paid"

// ErrSessionNotFound is returned by ResolveSession for an unknown reference.
var ErrSessionNotFound = errors.New("payment session not found")

// CheckoutRequest describes one payment to collect.
type CheckoutRequest struct {
	Amount     decimal.Decimal
	Currency   string
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

// Session is a resolved payment session.
type Session struct {
	ID              string
	URL             string
	Status          string
	AmountTotal     decimal.Decimal
	Currency        string
	PaymentIntentID string
	CustomerEmail   string
	Metadata        map[string]string
}

// Gateway is implemented by OmiseGateway and by test fakes.
type Gateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	ResolveSession(ctx context.Context, id string) (*Session, error)
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// Disabled is the gateway used when no processor keys are set.  Every call
// fails, so checkout and settlement report Internal instead of panicking.
type Disabled struct{}

func (Disabled) CreateSession(context.Context, CheckoutRequest) (*Session, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ResolveSession(context.Context, string) (*Session, error) {
	return nil, ErrNotConfigured
}

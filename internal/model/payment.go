package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is an append-only ledger row, unique per (BookingID,
// TransactionID).  Writing the same key twice is a no-op.
type Payment struct {
	ID            string          `json:"_id"`
	BookingID     string          `json:"bookingId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PayerEmail    string          `json:"customerEmail"`
	ServiceName   string          `json:"serviceName"`
	PaidAt        time.Time       `json:"paidAt"`
}

// Payout states of an earning row.
const (
	PayoutPending = "pending"
	PayoutPaid    = "paid"
)

// CommissionRate is the fixed fraction of a booking's paid amount credited
// to the decorator.
var CommissionRate = decimal.RequireFromString("0.25")

// Earning is an append-only ledger row, unique per BookingID, created when a
// booking is completed.
type Earning struct {
	ID             string          `json:"_id"`
	BookingID      string          `json:"bookingId"`
	DecoratorID    string          `json:"decoratorId"`
	ServicePrice   decimal.Decimal `json:"servicePrice"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	AmountEarned   decimal.Decimal `json:"amountEarned"`
	PayoutStatus   string          `json:"payoutStatus"`
	CreatedAt      time.Time       `json:"createdAt"`
	PaidOutAt      *time.Time      `json:"paidOutAt,omitempty"`
}

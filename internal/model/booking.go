package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.  Decoration bookings move pending → assigned → planning
// → completed, with awaiting-reassignment when the assigned decorator
// rejects.  Consultations go pending → confirmed.  confirmed is also set by
// payment settlement for decoration bookings.
const (
	BookingPending              = "pending"
	BookingAssigned             = "assigned"
	BookingPlanning             = "planning"
	BookingAwaitingReassignment = "awaiting-reassignment"
	BookingConfirmed            = "confirmed"
	BookingCompleted            = "completed"
)

// Booking types.
const (
	BookingTypeDecoration   = "decoration"
	BookingTypeConsultation = "consultation"
)

// Payment statuses tracked on the booking record.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// ValidBookingStatus reports whether s belongs to the booking vocabulary.
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingPending, BookingAssigned, BookingPlanning, BookingAwaitingReassignment,
		BookingConfirmed, BookingCompleted:
		return true
	}
	return false
}

// WorkStatusSources lists the statuses an assigned decorator may move a
// booking out of into next.  confirmed is accepted because settlement
// overwrites assigned; completed accepts itself so completion can be
// replayed.  completed is otherwise terminal.
func WorkStatusSources(next string) []string {
	switch next {
	case BookingPlanning:
		return []string{BookingAssigned, BookingConfirmed}
	case BookingCompleted:
		return []string{BookingAssigned, BookingPlanning, BookingConfirmed, BookingCompleted}
	}
	return nil
}

// Booking is the central workflow record.  PayableAmount is computed once at
// creation (UnitPrice × Quantity for decoration bookings, zero otherwise)
// and never recomputed.  AssignedDecoratorIDs and RejectedBy are stored in
// the booking_decorators and booking_rejections child tables.
type Booking struct {
	ID                   string              `json:"_id"`
	BookedByEmail        string              `json:"bookedByEmail"`
	CustomerName         string              `json:"customerName,omitempty"`
	ServiceID            *string             `json:"serviceId,omitempty"`
	ServiceName          string              `json:"serviceName,omitempty"`
	BookingType          string              `json:"bookingType"`
	Quantity             decimal.Decimal     `json:"quantity"`
	UnitPrice            decimal.Decimal     `json:"unitPrice"`
	PayableAmount        decimal.Decimal     `json:"payableAmount"`
	Status               string              `json:"status"`
	AssignedDecoratorIDs []string            `json:"assignedDecoratorIds"`
	RejectedBy           []string            `json:"rejectedBy"`
	PaymentStatus        string              `json:"paymentStatus"`
	TransactionID        *string             `json:"transactionId,omitempty"`
	AmountPaid           decimal.NullDecimal `json:"amountPaid"`
	EventDate            *time.Time          `json:"eventDate,omitempty"`
	Location             string              `json:"location,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	AssignedAt           *time.Time          `json:"assignedAt,omitempty"`
	PaidAt               *time.Time          `json:"paidAt,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// HasDecorator reports whether decoratorID is in the assigned-decorator set.
func (b *Booking) HasDecorator(decoratorID string) bool {
	return contains(b.AssignedDecoratorIDs, decoratorID)
}

// CanMoveTo reports whether a decorator may move the booking to next.
func (b *Booking) CanMoveTo(next string) bool {
	return contains(WorkStatusSources(next), b.Status)
}

// PaymentUpdate carries the fields written on a booking when a payment is
// settled.
type PaymentUpdate struct {
	TransactionID string
	AmountPaid    decimal.Decimal
	PaidAt        time.Time
}

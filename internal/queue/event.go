// Package queue defines the domain events published to the message broker
// together with the publisher and the log consumer.
package queue

import "time"

// Routing keys.  The exchange is a topic exchange so consumers can bind
// "booking.#" or "decorator.#".
const (
	KeyBookingCreated    = "booking.created"
	KeyBookingAssigned   = "booking.assigned"
	KeyBookingRejected   = "booking.rejected"
	KeyBookingPlanning   = "booking.planning"
	KeyBookingCompleted  = "booking.completed"
	KeyBookingConfirmed  = "booking.confirmed"
	KeyDecoratorApplied  = "decorator.applied"
	KeyDecoratorReviewed = "decorator.reviewed"
)

// Event is the single payload shape for every routing key.  Fields that do
// not apply to an event are left empty.  It carries enough for downstream
// consumers to log or notify without querying the primary database.
type Event struct {
	Key           string    `json:"key"`
	BookingID     string    `json:"bookingId,omitempty"`
	DecoratorID   string    `json:"decoratorId,omitempty"`
	Email         string    `json:"email,omitempty"`
	Status        string    `json:"status,omitempty"`
	ServiceName   string    `json:"serviceName,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

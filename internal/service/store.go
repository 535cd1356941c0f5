// Package service holds the engines that own the booking lifecycle, the
// decorator roster, payment settlement and the catalog.  Engines depend on
// the narrow store interfaces declared here; internal/repository (MySQL) and
// internal/repository/memory both satisfy them.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/queue"
)

type UserStore interface {
	Upsert(ctx context.Context, u *model.User) (bool, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	LinkDecorator(ctx context.Context, email, decoratorID string, at time.Time) error
	SetRole(ctx context.Context, email, role string, at time.Time) error
}

type ServiceStore interface {
	Create(ctx context.Context, s *model.Service) error
	GetByID(ctx context.Context, id string) (*model.Service, error)
	List(ctx context.Context, category string) ([]model.Service, error)
	Update(ctx context.Context, s *model.Service) error
	Delete(ctx context.Context, id string) error
}

type ServiceCenterStore interface {
	Create(ctx context.Context, c *model.ServiceCenter) error
	List(ctx context.Context, city string) ([]model.ServiceCenter, error)
	Delete(ctx context.Context, id string) error
}

type DecoratorStore interface {
	Create(ctx context.Context, d *model.Decorator) error
	GetByID(ctx context.Context, id string) (*model.Decorator, error)
	GetByEmail(ctx context.Context, email string) (*model.Decorator, error)
	List(ctx context.Context, f model.DecoratorFilter) ([]model.Decorator, error)
	Approve(ctx context.Context, id string, at time.Time) error
	Reject(ctx context.Context, id string, at time.Time) error
	SetAccountStatus(ctx context.Context, id, status string, at time.Time) error
	SetAvailability(ctx context.Context, id string, available bool, at time.Time) error
	AttachBooking(ctx context.Context, decoratorID, bookingID string, at time.Time) error
	StartProject(ctx context.Context, decoratorID, bookingID string, at time.Time) error
	FinishProject(ctx context.Context, decoratorID, bookingID string, at time.Time) error
	DetachBooking(ctx context.Context, decoratorID, bookingID string, at time.Time) error
	Assignments(ctx context.Context) ([]model.Assignment, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByEmail(ctx context.Context, email string) ([]model.Booking, error)
	ListByDecorator(ctx context.Context, decoratorID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)
	Delete(ctx context.Context, id string) error
	MarkAssigned(ctx context.Context, bookingID, decoratorID string, at time.Time) error
	SetWorkStatus(ctx context.Context, bookingID, decoratorID, status string, at time.Time) error
	RecordRejection(ctx context.Context, bookingID, decoratorID string, at time.Time) error
	UpdateStatus(ctx context.Context, bookingID, from, to string, at time.Time) error
	MarkPaid(ctx context.Context, bookingID string, p model.PaymentUpdate) error
	Assignments(ctx context.Context) ([]model.Assignment, error)
}

type PaymentStore interface {
	InsertIfAbsent(ctx context.Context, p *model.Payment) (bool, error)
	ListByEmail(ctx context.Context, email string) ([]model.Payment, error)
	ListAll(ctx context.Context) ([]model.Payment, error)
}

type EarningStore interface {
	InsertIfAbsent(ctx context.Context, e *model.Earning) (bool, error)
	ListByDecorator(ctx context.Context, decoratorID string) ([]model.Earning, error)
	Exists(ctx context.Context, bookingID string) (bool, error)
	MarkPaidOut(ctx context.Context, bookingID string, at time.Time) error
}

// Publisher receives domain events.  Publishing is best effort: failures are
// logged by the caller and never change an operation's outcome.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }

func orNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

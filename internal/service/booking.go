package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/metrics"
	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/queue"
	"github.com/iliyamo/styledecor/internal/repository"
)

// BookingEngine owns booking status transitions and the decorator side of
// assignment, rejection and completion.  Each of those is two independent
// single-record writes (decorator, booking); nothing spans both.  When the
// second write fails after the first applied, the error is logged, counted
// and returned with Partial set.  Reconciler repairs such pairs.
type BookingEngine struct {
	Bookings   BookingStore
	Decorators DecoratorStore
	Services   ServiceStore
	Earnings   EarningStore
	Events     Publisher
	Now        Clock
}

func NewBookingEngine(b BookingStore, d DecoratorStore, s ServiceStore, e EarningStore, pub Publisher) *BookingEngine {
	return &BookingEngine{Bookings: b, Decorators: d, Services: s, Earnings: e, Events: orNop(pub), Now: utcNow}
}

// CreateBookingInput is what a client submits.  Quantity is the raw request
// value so that non-numeric input is rejected here rather than at decode.
type CreateBookingInput struct {
	BookedByEmail string
	CustomerName  string
	ServiceID     string
	BookingType   string
	Quantity      string
	EventDate     *time.Time
	Location      string
	Notes         string
}

// CreateBooking validates the request, prices it from the catalog and
// stores it as pending/unpaid.  The payable amount is fixed here and never
// recomputed, even if the service price changes later.
func (e *BookingEngine) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	email := strings.ToLower(strings.TrimSpace(in.BookedByEmail))
	if email == "" {
		return nil, invalid("bookedByEmail is required")
	}
	bookingType := strings.TrimSpace(in.BookingType)
	if bookingType == "" {
		bookingType = model.BookingTypeDecoration
	}
	if bookingType != model.BookingTypeDecoration && bookingType != model.BookingTypeConsultation {
		return nil, invalid("bookingType must be decoration or consultation")
	}
	raw := strings.TrimSpace(in.Quantity)
	if raw == "" && bookingType == model.BookingTypeConsultation {
		raw = "1"
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil || !qty.IsPositive() {
		return nil, invalid("quantity must be a positive number")
	}

	b := &model.Booking{
		BookedByEmail: email,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		BookingType:   bookingType,
		Quantity:      qty,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
		EventDate:     in.EventDate,
		Location:      strings.TrimSpace(in.Location),
		Notes:         strings.TrimSpace(in.Notes),
	}

	serviceID := strings.TrimSpace(in.ServiceID)
	if serviceID == "" && bookingType == model.BookingTypeDecoration {
		return nil, invalid("serviceId is required for decoration bookings")
	}
	if serviceID != "" {
		if _, err := uuid.Parse(serviceID); err != nil {
			return nil, invalid("malformed serviceId")
		}
		svc, err := e.Services.GetByID(ctx, serviceID)
		if err != nil {
			return nil, fromStore(err, "service")
		}
		b.ServiceID = &svc.ID
		b.ServiceName = svc.Name
		b.UnitPrice = svc.Cost
	}
	if bookingType == model.BookingTypeDecoration {
		b.PayableAmount = b.UnitPrice.Mul(qty)
	} else {
		b.PayableAmount = decimal.Zero
	}

	if err := e.Bookings.Create(ctx, b); err != nil {
		return nil, internal("create booking", err)
	}
	metrics.RecordTransition(model.BookingPending)
	e.publish(ctx, queue.Event{Key: queue.KeyBookingCreated, BookingID: b.ID, Email: b.BookedByEmail,
		Status: b.Status, ServiceName: b.ServiceName, Amount: b.PayableAmount.String()})
	return b, nil
}

// AssignDecorator attaches the booking to the decorator (unavailable, booking
// added to its assigned set), then marks the booking assigned with the
// decorator added to its set.  Either write matching nothing new is
// NoChange.
func (e *BookingEngine) AssignDecorator(ctx context.Context, bookingID, decoratorID string) (*model.Booking, error) {
	if err := validIDs(bookingID, decoratorID); err != nil {
		return nil, err
	}
	if _, err := e.Bookings.GetByID(ctx, bookingID); err != nil {
		return nil, fromStore(err, "booking")
	}
	if _, err := e.Decorators.GetByID(ctx, decoratorID); err != nil {
		return nil, fromStore(err, "decorator")
	}

	now := e.Now()
	if err := e.Decorators.AttachBooking(ctx, decoratorID, bookingID, now); err != nil {
		return nil, fromStore(err, "decorator")
	}
	if err := e.Bookings.MarkAssigned(ctx, bookingID, decoratorID, now); err != nil {
		return nil, e.partialFailure("assign", bookingID, decoratorID, fromStore(err, "booking"))
	}
	metrics.RecordTransition(model.BookingAssigned)
	e.publish(ctx, queue.Event{Key: queue.KeyBookingAssigned, BookingID: bookingID, DecoratorID: decoratorID,
		Status: model.BookingAssigned})
	return e.reload(ctx, bookingID)
}

// AdvanceStatus moves a booking the decorator is assigned to into planning
// (from assigned or confirmed) or completed (from assigned, planning or
// confirmed).  completed is terminal.  Completion requires a settled
// payment and writes the decorator's earning (amountPaid × CommissionRate)
// once per booking.  Replaying completion re-runs the decorator update; the
// earning insert is a no-op the second time.
func (e *BookingEngine) AdvanceStatus(ctx context.Context, bookingID, decoratorID, next string) (*model.Booking, error) {
	if err := validIDs(bookingID, decoratorID); err != nil {
		return nil, err
	}
	if next != model.BookingPlanning && next != model.BookingCompleted {
		return nil, invalid("status must be planning or completed")
	}
	b, err := e.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fromStore(err, "booking")
	}
	if !b.HasDecorator(decoratorID) {
		return nil, newError(KindPermissionDenied, "decorator is not assigned to this booking")
	}
	if !b.CanMoveTo(next) {
		return nil, newError(KindFailedPrecondition, "booking cannot move from "+b.Status+" to "+next)
	}
	if next == model.BookingCompleted && !b.AmountPaid.Valid {
		return nil, newError(KindFailedPrecondition, "booking has no settled payment")
	}

	now := e.Now()
	if err := e.Bookings.SetWorkStatus(ctx, bookingID, decoratorID, next, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, newError(KindPermissionDenied, "decorator is not assigned to this booking")
		case errors.Is(err, repository.ErrNoChange):
			return nil, &Error{Kind: KindFailedPrecondition, Msg: "booking status changed concurrently", Err: err}
		}
		return nil, internal("update booking status", err)
	}

	switch next {
	case model.BookingPlanning:
		if err := e.Decorators.StartProject(ctx, decoratorID, bookingID, now); err != nil {
			return nil, e.partialFailure("planning", bookingID, decoratorID, fromStore(err, "decorator"))
		}
		e.publish(ctx, queue.Event{Key: queue.KeyBookingPlanning, BookingID: bookingID, DecoratorID: decoratorID,
			Status: next})
	case model.BookingCompleted:
		if err := e.Decorators.FinishProject(ctx, decoratorID, bookingID, now); err != nil {
			return nil, e.partialFailure("complete", bookingID, decoratorID, fromStore(err, "decorator"))
		}
		earning := newEarning(b, decoratorID, now)
		if _, err := e.Earnings.InsertIfAbsent(ctx, earning); err != nil {
			return nil, e.partialFailure("earning", bookingID, decoratorID, internal("insert earning", err))
		}
		e.publish(ctx, queue.Event{Key: queue.KeyBookingCompleted, BookingID: bookingID, DecoratorID: decoratorID,
			Status: next, Amount: earning.AmountEarned.String()})
	}
	metrics.RecordTransition(next)
	return e.reload(ctx, bookingID)
}

// newEarning computes the ledger row for a completed booking.
func newEarning(b *model.Booking, decoratorID string, at time.Time) *model.Earning {
	paid := b.AmountPaid.Decimal
	return &model.Earning{
		BookingID:      b.ID,
		DecoratorID:    decoratorID,
		ServicePrice:   paid,
		CommissionRate: model.CommissionRate,
		AmountEarned:   paid.Mul(model.CommissionRate),
		PayoutStatus:   model.PayoutPending,
		CreatedAt:      at,
	}
}

// RejectAssignment lets an assigned decorator hand the booking back.  The
// booking goes to awaiting-reassignment with the decorator recorded in
// rejectedBy; the decorator becomes available again once it holds no other
// booking.
func (e *BookingEngine) RejectAssignment(ctx context.Context, bookingID, decoratorID string) (*model.Booking, error) {
	if err := validIDs(bookingID, decoratorID); err != nil {
		return nil, err
	}
	now := e.Now()
	if err := e.Bookings.RecordRejection(ctx, bookingID, decoratorID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("booking is not assigned to this decorator")
		}
		return nil, internal("record rejection", err)
	}
	if err := e.Decorators.DetachBooking(ctx, decoratorID, bookingID, now); err != nil {
		return nil, e.partialFailure("reject", bookingID, decoratorID, fromStore(err, "decorator"))
	}
	metrics.RecordTransition(model.BookingAwaitingReassignment)
	e.publish(ctx, queue.Event{Key: queue.KeyBookingRejected, BookingID: bookingID, DecoratorID: decoratorID,
		Status: model.BookingAwaitingReassignment})
	return e.reload(ctx, bookingID)
}

// UpdateStatus is the admin status change.  Only pending consultations can
// be moved, and only to confirmed; decoration bookings are confirmed by
// payment settlement.
func (e *BookingEngine) UpdateStatus(ctx context.Context, bookingID, status string) (*model.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return nil, invalid("malformed booking id")
	}
	if !model.ValidBookingStatus(status) {
		return nil, invalid("unknown booking status")
	}
	b, err := e.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fromStore(err, "booking")
	}
	if b.BookingType != model.BookingTypeConsultation || status != model.BookingConfirmed {
		return nil, newError(KindFailedPrecondition, "only consultation bookings can be confirmed directly")
	}
	err = e.Bookings.UpdateStatus(ctx, bookingID, model.BookingPending, model.BookingConfirmed, e.Now())
	switch {
	case errors.Is(err, repository.ErrNoChange):
		return nil, newError(KindFailedPrecondition, "consultation is not pending")
	case err != nil:
		return nil, fromStore(err, "booking")
	}
	metrics.RecordTransition(model.BookingConfirmed)
	return e.reload(ctx, bookingID)
}

func (e *BookingEngine) Get(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed booking id")
	}
	b, err := e.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "booking")
	}
	return b, nil
}

func (e *BookingEngine) ListForClient(ctx context.Context, email string) ([]model.Booking, error) {
	out, err := e.Bookings.ListByEmail(ctx, email)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	return out, nil
}

func (e *BookingEngine) ListForDecorator(ctx context.Context, decoratorID string) ([]model.Booking, error) {
	out, err := e.Bookings.ListByDecorator(ctx, decoratorID)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	return out, nil
}

func (e *BookingEngine) ListAdmin(ctx context.Context) ([]model.Booking, error) {
	out, err := e.Bookings.ListAll(ctx)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	return out, nil
}

// DeleteBooking hard-deletes the booking.  Decorator sets that still point
// at it are left for the reconciler to detach.
func (e *BookingEngine) DeleteBooking(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("malformed booking id")
	}
	if err := e.Bookings.Delete(ctx, id); err != nil {
		return fromStore(err, "booking")
	}
	return nil
}

func (e *BookingEngine) reload(ctx context.Context, id string) (*model.Booking, error) {
	b, err := e.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "booking")
	}
	return b, nil
}

func (e *BookingEngine) partialFailure(op, bookingID, decoratorID string, err *Error) *Error {
	zap.L().Error("two-step write left half applied",
		zap.String("op", op),
		zap.String("booking_id", bookingID),
		zap.String("decorator_id", decoratorID),
		zap.Error(err))
	metrics.RecordPartialWrite(op)
	return partial(err)
}

func (e *BookingEngine) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = e.Now()
	if err := e.Events.Publish(ctx, ev); err != nil {
		zap.L().Warn("publish event failed", zap.String("key", ev.Key), zap.Error(err))
	}
}

func validIDs(bookingID, decoratorID string) error {
	if _, err := uuid.Parse(bookingID); err != nil {
		return invalid("malformed booking id")
	}
	if _, err := uuid.Parse(decoratorID); err != nil {
		return invalid("malformed decorator id")
	}
	return nil
}

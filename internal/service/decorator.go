package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/metrics"
	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/queue"
	"github.com/iliyamo/styledecor/internal/repository"
)

// Review actions.
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
	ReviewDisable = "disable"
	ReviewEnable  = "enable"
)

// RosterEngine owns decorator applications, account state and the roster.
type RosterEngine struct {
	Decorators DecoratorStore
	Users      UserStore
	Earnings   EarningStore
	Events     Publisher
	Now        Clock
}

func NewRosterEngine(d DecoratorStore, u UserStore, e EarningStore, pub Publisher) *RosterEngine {
	return &RosterEngine{Decorators: d, Users: u, Earnings: e, Events: orNop(pub), Now: utcNow}
}

// ApplyInput is a decorator application.
type ApplyInput struct {
	Email           string
	Name            string
	Phone           string
	PhotoURL        string
	Bio             string
	City            string
	Address         string
	Specialization  string
	ExperienceYears int
}

// Apply files a pending application.  An email already on file is
// AlreadyExists; the unique index catches the race between the check and
// the insert.
func (r *RosterEngine) Apply(ctx context.Context, in ApplyInput) (*model.Decorator, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, invalid("decoratorEmail is required")
	}
	if in.ExperienceYears < 0 {
		return nil, invalid("experienceYears must not be negative")
	}
	_, err := r.Decorators.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, newError(KindAlreadyExists, "an application for this email is already on file")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, internal("lookup decorator", err)
	}

	d := &model.Decorator{
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Phone:    strings.TrimSpace(in.Phone),
		PhotoURL: strings.TrimSpace(in.PhotoURL),
		Bio:      strings.TrimSpace(in.Bio),
		ServiceLocation: model.ServiceLocation{
			City:    strings.TrimSpace(in.City),
			Address: strings.TrimSpace(in.Address),
		},
		Specialization:    strings.TrimSpace(in.Specialization),
		ExperienceYears:   in.ExperienceYears,
		ApplicationStatus: model.ApplicationPending,
		AccountStatus:     model.AccountActive,
	}
	if err := r.Decorators.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(KindAlreadyExists, "an application for this email is already on file")
		}
		return nil, internal("create decorator", err)
	}
	r.publish(ctx, queue.Event{Key: queue.KeyDecoratorApplied, DecoratorID: d.ID, Email: d.Email,
		Status: d.ApplicationStatus})
	return d, nil
}

// Review applies an admin action.  approve is allowed from pending or
// rejected and also promotes the linked user to the decorator role; reject
// only from pending.  disable and enable apply from any state.  A guard miss
// is Conflict and mutates nothing.
func (r *RosterEngine) Review(ctx context.Context, id, action string) (*model.Decorator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed decorator id")
	}
	now := r.Now()
	var err error
	switch action {
	case ReviewApprove:
		err = r.Decorators.Approve(ctx, id, now)
	case ReviewReject:
		err = r.Decorators.Reject(ctx, id, now)
	case ReviewDisable:
		err = r.Decorators.SetAccountStatus(ctx, id, model.AccountDisabled, now)
	case ReviewEnable:
		err = r.Decorators.SetAccountStatus(ctx, id, model.AccountActive, now)
	default:
		return nil, invalid("action must be approve, reject, disable or enable")
	}
	switch {
	case errors.Is(err, repository.ErrNoChange):
		return nil, &Error{Kind: KindConflict, Msg: "application cannot be " + pastTense(action) + " from its current state", Err: err}
	case err != nil:
		return nil, fromStore(err, "decorator")
	}

	d, err := r.Decorators.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "decorator")
	}
	if action == ReviewApprove {
		if err := r.Users.LinkDecorator(ctx, d.Email, d.ID, now); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				zap.L().Error("approve: link user failed after decorator update",
					zap.String("decorator_id", d.ID), zap.String("email", d.Email), zap.Error(err))
				metrics.RecordPartialWrite("approve")
				return nil, partial(internal("link user", err))
			}
			// The applicant has not signed in yet; SignIn links on first login.
			zap.L().Warn("approve: no user record to link", zap.String("email", d.Email))
		}
	}
	metrics.RecordReview(action)
	r.publish(ctx, queue.Event{Key: queue.KeyDecoratorReviewed, DecoratorID: d.ID, Email: d.Email,
		Status: action})
	return d, nil
}

func pastTense(action string) string {
	switch action {
	case ReviewApprove:
		return "approved"
	case ReviewReject:
		return "rejected"
	}
	return action + "d"
}

// SetAvailability is the manual availability override.  A nil flag means
// the request did not carry a boolean.
func (r *RosterEngine) SetAvailability(ctx context.Context, id string, available *bool) (*model.Decorator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed decorator id")
	}
	if available == nil {
		return nil, invalid("isAvailable must be a boolean")
	}
	if err := r.Decorators.SetAvailability(ctx, id, *available, r.Now()); err != nil {
		return nil, fromStore(err, "decorator")
	}
	return r.Get(ctx, id)
}

// RosterFilter is the public roster query.  ApplicationStatus is accepted
// but any supplied filter scopes the listing to approved, available
// decorators.
type RosterFilter struct {
	City              string
	Specialization    string
	ApplicationStatus string
}

func (f RosterFilter) empty() bool {
	return f.City == "" && f.Specialization == "" && f.ApplicationStatus == ""
}

// ListRoster returns every decorator when f is empty.  Otherwise it returns
// only bookable decorators (approved and available) matching city and
// specialization.
func (r *RosterEngine) ListRoster(ctx context.Context, f RosterFilter) ([]model.Decorator, error) {
	var q model.DecoratorFilter
	if !f.empty() {
		available := true
		q = model.DecoratorFilter{
			ApplicationStatus: model.ApplicationApproved,
			IsAvailable:       &available,
			City:              f.City,
			Specialization:    f.Specialization,
		}
	}
	out, err := r.Decorators.List(ctx, q)
	if err != nil {
		return nil, internal("list decorators", err)
	}
	return out, nil
}

// ListApplications is the admin review queue, optionally narrowed by
// application status.
func (r *RosterEngine) ListApplications(ctx context.Context, status string) ([]model.Decorator, error) {
	switch status {
	case "", model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected:
	default:
		return nil, invalid("unknown application status")
	}
	out, err := r.Decorators.List(ctx, model.DecoratorFilter{ApplicationStatus: status})
	if err != nil {
		return nil, internal("list decorators", err)
	}
	return out, nil
}

func (r *RosterEngine) Get(ctx context.Context, id string) (*model.Decorator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("malformed decorator id")
	}
	d, err := r.Decorators.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "decorator")
	}
	return d, nil
}

func (r *RosterEngine) GetByEmail(ctx context.Context, email string) (*model.Decorator, error) {
	d, err := r.Decorators.GetByEmail(ctx, email)
	if err != nil {
		return nil, fromStore(err, "decorator")
	}
	return d, nil
}

// EarningsSummary is a decorator's ledger with totals per payout state.
type EarningsSummary struct {
	Earnings     []model.Earning `json:"earnings"`
	TotalEarned  decimal.Decimal `json:"totalEarned"`
	PendingTotal decimal.Decimal `json:"pendingPayout"`
	PaidOutTotal decimal.Decimal `json:"paidOut"`
}

func (r *RosterEngine) EarningsFor(ctx context.Context, decoratorID string) (*EarningsSummary, error) {
	rows, err := r.Earnings.ListByDecorator(ctx, decoratorID)
	if err != nil {
		return nil, internal("list earnings", err)
	}
	s := &EarningsSummary{Earnings: rows, TotalEarned: decimal.Zero, PendingTotal: decimal.Zero, PaidOutTotal: decimal.Zero}
	for _, e := range rows {
		s.TotalEarned = s.TotalEarned.Add(e.AmountEarned)
		if e.PayoutStatus == model.PayoutPaid {
			s.PaidOutTotal = s.PaidOutTotal.Add(e.AmountEarned)
		} else {
			s.PendingTotal = s.PendingTotal.Add(e.AmountEarned)
		}
	}
	return s, nil
}

// MarkEarningPaid records the payout of a booking's earning.
func (r *RosterEngine) MarkEarningPaid(ctx context.Context, bookingID string) error {
	if _, err := uuid.Parse(bookingID); err != nil {
		return invalid("malformed booking id")
	}
	err := r.Earnings.MarkPaidOut(ctx, bookingID, r.Now())
	switch {
	case errors.Is(err, repository.ErrNoChange):
		return &Error{Kind: KindConflict, Msg: "earning already paid out", Err: err}
	case err != nil:
		return fromStore(err, "earning")
	}
	return nil
}

func (r *RosterEngine) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = r.Now()
	if err := r.Events.Publish(ctx, ev); err != nil {
		zap.L().Warn("publish event failed", zap.String("key", ev.Key), zap.Error(err))
	}
}

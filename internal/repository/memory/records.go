package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/repository"
)

// Decorators is the in-memory decorators collection.  Email is unique.
type Decorators struct {
	mu   sync.Mutex
	byID map[string]*model.Decorator
}

func cloneDecorator(d *model.Decorator) *model.Decorator {
	c := *d
	c.CurrentProject = cloneStr(d.CurrentProject)
	c.AssignedBookings = cloneStrings(d.AssignedBookings)
	c.FinishedProjectIDs = cloneStrings(d.FinishedProjectIDs)
	c.ApprovedAt = cloneTime(d.ApprovedAt)
	c.RejectedAt = cloneTime(d.RejectedAt)
	c.DisabledAt = cloneTime(d.DisabledAt)
	return &c
}

func (s *Decorators) Create(_ context.Context, d *model.Decorator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Email = norm(d.Email)
	for _, cur := range s.byID {
		if cur.Email == d.Email {
			return repository.ErrDuplicate
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.AssignedBookings == nil {
		d.AssignedBookings = []string{}
	}
	if d.FinishedProjectIDs == nil {
		d.FinishedProjectIDs = []string{}
	}
	s.byID[d.ID] = cloneDecorator(d)
	return nil
}

func (s *Decorators) GetByID(_ context.Context, id string) (*model.Decorator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDecorator(d), nil
}

func (s *Decorators) GetByEmail(_ context.Context, email string) (*model.Decorator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = norm(email)
	for _, d := range s.byID {
		if d.Email == email {
			return cloneDecorator(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Decorators) List(_ context.Context, f model.DecoratorFilter) ([]model.Decorator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Decorator{}
	for _, d := range s.byID {
		if f.ApplicationStatus != "" && d.ApplicationStatus != f.ApplicationStatus {
			continue
		}
		if f.IsAvailable != nil && d.IsAvailable != *f.IsAvailable {
			continue
		}
		if f.City != "" && d.ServiceLocation.City != f.City {
			continue
		}
		if f.Specialization != "" && d.Specialization != f.Specialization {
			continue
		}
		out = append(out, *cloneDecorator(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// update runs fn on the stored decorator under the collection lock.
func (s *Decorators) update(id string, fn func(d *model.Decorator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	return fn(d)
}

func (s *Decorators) Approve(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(d *model.Decorator) error {
		if d.ApplicationStatus != model.ApplicationPending && d.ApplicationStatus != model.ApplicationRejected {
			return repository.ErrNoChange
		}
		d.ApplicationStatus = model.ApplicationApproved
		d.IsVerified = true
		d.ApprovedAt = &at
		d.RejectedAt = nil
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) Reject(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(d *model.Decorator) error {
		if d.ApplicationStatus != model.ApplicationPending {
			return repository.ErrNoChange
		}
		d.ApplicationStatus = model.ApplicationRejected
		d.IsVerified = false
		d.RejectedAt = &at
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) SetAccountStatus(_ context.Context, id, status string, at time.Time) error {
	return s.update(id, func(d *model.Decorator) error {
		d.AccountStatus = status
		if status == model.AccountDisabled {
			d.IsAvailable = false
			d.DisabledAt = &at
		} else {
			d.IsAvailable = len(d.AssignedBookings) == 0
			d.DisabledAt = nil
		}
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) SetAvailability(_ context.Context, id string, available bool, at time.Time) error {
	return s.update(id, func(d *model.Decorator) error {
		d.IsAvailable = available
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) AttachBooking(_ context.Context, decoratorID, bookingID string, at time.Time) error {
	return s.update(decoratorID, func(d *model.Decorator) error {
		set, added := addToSet(d.AssignedBookings, bookingID)
		if !added && !d.IsAvailable {
			return repository.ErrNoChange
		}
		d.AssignedBookings = set
		d.IsAvailable = false
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) StartProject(_ context.Context, decoratorID, bookingID string, at time.Time) error {
	return s.update(decoratorID, func(d *model.Decorator) error {
		d.IsAvailable = false
		d.CurrentProject = &bookingID
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) FinishProject(_ context.Context, decoratorID, bookingID string, at time.Time) error {
	return s.update(decoratorID, func(d *model.Decorator) error {
		d.AssignedBookings, _ = pull(d.AssignedBookings, bookingID)
		d.FinishedProjectIDs, _ = addToSet(d.FinishedProjectIDs, bookingID)
		release(d, bookingID)
		d.UpdatedAt = at
		return nil
	})
}

func (s *Decorators) DetachBooking(_ context.Context, decoratorID, bookingID string, at time.Time) error {
	return s.update(decoratorID, func(d *model.Decorator) error {
		d.AssignedBookings, _ = pull(d.AssignedBookings, bookingID)
		release(d, bookingID)
		d.UpdatedAt = at
		return nil
	})
}

// release clears the current project when it is bookingID and makes the
// decorator available once nothing is assigned.
func release(d *model.Decorator, bookingID string) {
	if d.CurrentProject != nil && *d.CurrentProject == bookingID {
		d.CurrentProject = nil
	}
	d.IsAvailable = len(d.AssignedBookings) == 0
}

func (s *Decorators) Assignments(_ context.Context) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assignment
	for _, d := range s.byID {
		for _, b := range d.AssignedBookings {
			out = append(out, model.Assignment{DecoratorID: d.ID, BookingID: b})
		}
	}
	return out, nil
}

// Bookings is the in-memory bookings collection.
type Bookings struct {
	mu   sync.Mutex
	byID map[string]*model.Booking
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.ServiceID = cloneStr(b.ServiceID)
	c.TransactionID = cloneStr(b.TransactionID)
	c.AssignedDecoratorIDs = cloneStrings(b.AssignedDecoratorIDs)
	c.RejectedBy = cloneStrings(b.RejectedBy)
	c.EventDate = cloneTime(b.EventDate)
	c.AssignedAt = cloneTime(b.AssignedAt)
	c.PaidAt = cloneTime(b.PaidAt)
	return &c
}

func (s *Bookings) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.BookedByEmail = norm(b.BookedByEmail)
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	if b.AssignedDecoratorIDs == nil {
		b.AssignedDecoratorIDs = []string{}
	}
	if b.RejectedBy == nil {
		b.RejectedBy = []string{}
	}
	s.byID[b.ID] = cloneBooking(b)
	return nil
}

func (s *Bookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *Bookings) filter(keep func(b *model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.byID {
		if keep(b) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Bookings) ListByEmail(_ context.Context, email string) ([]model.Booking, error) {
	email = norm(email)
	return s.filter(func(b *model.Booking) bool { return b.BookedByEmail == email }), nil
}

func (s *Bookings) ListByDecorator(_ context.Context, decoratorID string) ([]model.Booking, error) {
	return s.filter(func(b *model.Booking) bool { return b.HasDecorator(decoratorID) }), nil
}

func (s *Bookings) ListAll(_ context.Context) ([]model.Booking, error) {
	return s.filter(func(*model.Booking) bool { return true }), nil
}

func (s *Bookings) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Bookings) update(id string, fn func(b *model.Booking) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	return fn(b)
}

func (s *Bookings) MarkAssigned(_ context.Context, bookingID, decoratorID string, at time.Time) error {
	return s.update(bookingID, func(b *model.Booking) error {
		if b.HasDecorator(decoratorID) && b.Status == model.BookingAssigned {
			return repository.ErrNoChange
		}
		b.AssignedDecoratorIDs, _ = addToSet(b.AssignedDecoratorIDs, decoratorID)
		b.Status = model.BookingAssigned
		b.AssignedAt = &at
		b.UpdatedAt = at
		return nil
	})
}

func (s *Bookings) SetWorkStatus(_ context.Context, bookingID, decoratorID, status string, at time.Time) error {
	return s.update(bookingID, func(b *model.Booking) error {
		if !b.HasDecorator(decoratorID) {
			return repository.ErrNotFound
		}
		if !b.CanMoveTo(status) {
			return repository.ErrNoChange
		}
		b.Status = status
		b.UpdatedAt = at
		return nil
	})
}

func (s *Bookings) RecordRejection(_ context.Context, bookingID, decoratorID string, at time.Time) error {
	return s.update(bookingID, func(b *model.Booking) error {
		set, removed := pull(b.AssignedDecoratorIDs, decoratorID)
		if !removed {
			return repository.ErrNotFound
		}
		b.AssignedDecoratorIDs = set
		b.RejectedBy, _ = addToSet(b.RejectedBy, decoratorID)
		b.Status = model.BookingAwaitingReassignment
		b.AssignedAt = nil
		b.UpdatedAt = at
		return nil
	})
}

func (s *Bookings) UpdateStatus(_ context.Context, bookingID, from, to string, at time.Time) error {
	return s.update(bookingID, func(b *model.Booking) error {
		if b.Status != from {
			return repository.ErrNoChange
		}
		b.Status = to
		b.UpdatedAt = at
		return nil
	})
}

func (s *Bookings) MarkPaid(_ context.Context, bookingID string, p model.PaymentUpdate) error {
	return s.update(bookingID, func(b *model.Booking) error {
		if b.PaymentStatus == model.PaymentPaid {
			return repository.ErrNotFound
		}
		tx := p.TransactionID
		paidAt := p.PaidAt
		b.Status = model.BookingConfirmed
		b.PaymentStatus = model.PaymentPaid
		b.TransactionID = &tx
		b.AmountPaid.Decimal = p.AmountPaid
		b.AmountPaid.Valid = true
		b.PaidAt = &paidAt
		b.UpdatedAt = paidAt
		return nil
	})
}

func (s *Bookings) Assignments(_ context.Context) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assignment
	for _, b := range s.byID {
		for _, d := range b.AssignedDecoratorIDs {
			out = append(out, model.Assignment{DecoratorID: d, BookingID: b.ID, Status: b.Status})
		}
	}
	return out, nil
}

// Payments is the in-memory payment ledger, unique per (booking, transaction).
type Payments struct {
	mu   sync.Mutex
	rows []model.Payment
	keys map[string]bool
}

func (s *Payments) InsertIfAbsent(_ context.Context, p *model.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.BookingID + "\x00" + p.TransactionID
	if s.keys[key] {
		return false, nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.PayerEmail = norm(p.PayerEmail)
	s.keys[key] = true
	s.rows = append(s.rows, *p)
	return true, nil
}

func (s *Payments) list(keep func(p *model.Payment) bool) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Payment{}
	for i := range s.rows {
		if keep(&s.rows[i]) {
			out = append(out, s.rows[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out
}

func (s *Payments) ListByEmail(_ context.Context, email string) ([]model.Payment, error) {
	email = norm(email)
	return s.list(func(p *model.Payment) bool { return p.PayerEmail == email }), nil
}

func (s *Payments) ListAll(_ context.Context) ([]model.Payment, error) {
	return s.list(func(*model.Payment) bool { return true }), nil
}

// Earnings is the in-memory earnings ledger, unique per booking.
type Earnings struct {
	mu        sync.Mutex
	byBooking map[string]*model.Earning
}

func (s *Earnings) InsertIfAbsent(_ context.Context, e *model.Earning) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byBooking[e.BookingID]; ok {
		return false, nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c := *e
	s.byBooking[e.BookingID] = &c
	return true, nil
}

func (s *Earnings) ListByDecorator(_ context.Context, decoratorID string) ([]model.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Earning{}
	for _, e := range s.byBooking {
		if e.DecoratorID == decoratorID {
			c := *e
			c.PaidOutAt = cloneTime(e.PaidOutAt)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Earnings) Exists(_ context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byBooking[bookingID]
	return ok, nil
}

func (s *Earnings) MarkPaidOut(_ context.Context, bookingID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byBooking[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	if e.PayoutStatus != model.PayoutPending {
		return repository.ErrNoChange
	}
	e.PayoutStatus = model.PayoutPaid
	e.PaidOutAt = &at
	return nil
}

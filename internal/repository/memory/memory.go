// Package memory is an in-process implementation of the entity store.  It
// applies the same guards and unique keys as the MySQL repositories and is
// used for local runs (STORE_BACKEND=memory) and tests.  Each collection has
// its own mutex, so as with MySQL no operation spans two records atomically.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/repository"
)

// Store bundles one in-memory collection per record type.
type Store struct {
	Users          *Users
	Services       *Services
	ServiceCenters *ServiceCenters
	Decorators     *Decorators
	Bookings       *Bookings
	Payments       *Payments
	Earnings       *Earnings
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Users:          &Users{byEmail: map[string]*model.User{}},
		Services:       &Services{byID: map[string]*model.Service{}},
		ServiceCenters: &ServiceCenters{byID: map[string]*model.ServiceCenter{}},
		Decorators:     &Decorators{byID: map[string]*model.Decorator{}},
		Bookings:       &Bookings{byID: map[string]*model.Booking{}},
		Payments:       &Payments{keys: map[string]bool{}},
		Earnings:       &Earnings{byBooking: map[string]*model.Earning{}},
	}
}

func norm(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	t := *p
	return &t
}

func addToSet(set []string, v string) ([]string, bool) {
	for _, s := range set {
		if s == v {
			return set, false
		}
	}
	return append(set, v), true
}

func pull(set []string, v string) ([]string, bool) {
	for i, s := range set {
		if s == v {
			return append(set[:i:i], set[i+1:]...), true
		}
	}
	return set, false
}

// Users is the in-memory users collection, keyed by email.
type Users struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.DecoratorID = cloneStr(u.DecoratorID)
	return &c
}

func (s *Users) Upsert(_ context.Context, u *model.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = norm(u.Email)
	if existing, ok := s.byEmail[u.Email]; ok {
		*u = *cloneUser(existing)
		return false, nil
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleClient
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.byEmail[u.Email] = cloneUser(u)
	return true, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[norm(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Users) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.byEmail))
	for _, u := range s.byEmail {
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Users) LinkDecorator(_ context.Context, email, decoratorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[norm(email)]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = model.RoleDecorator
	u.DecoratorID = &decoratorID
	u.UpdatedAt = at
	return nil
}

func (s *Users) SetRole(_ context.Context, email, role string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[norm(email)]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = at
	return nil
}

// Services is the in-memory catalog.
type Services struct {
	mu   sync.Mutex
	byID map[string]*model.Service
}

func (s *Services) Create(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	c := *svc
	s.byID[svc.ID] = &c
	return nil
}

func (s *Services) GetByID(_ context.Context, id string) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *svc
	return &c, nil
}

func (s *Services) List(_ context.Context, category string) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Service{}
	for _, svc := range s.byID {
		if category == "" || svc.Category == category {
			out = append(out, *svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Services) Update(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[svc.ID]
	if !ok {
		return repository.ErrNotFound
	}
	svc.CreatedAt = cur.CreatedAt
	svc.CreatedBy = cur.CreatedBy
	svc.UpdatedAt = time.Now().UTC()
	c := *svc
	s.byID[svc.ID] = &c
	return nil
}

func (s *Services) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ServiceCenters is the in-memory branch list.
type ServiceCenters struct {
	mu   sync.Mutex
	byID map[string]*model.ServiceCenter
}

func (s *ServiceCenters) Create(_ context.Context, c *model.ServiceCenter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.byID[c.ID] = &cp
	return nil
}

func (s *ServiceCenters) List(_ context.Context, city string) ([]model.ServiceCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ServiceCenter{}
	for _, c := range s.byID {
		if city == "" || c.City == city {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *ServiceCenters) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

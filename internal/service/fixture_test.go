package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/payment"
	"github.com/iliyamo/styledecor/internal/queue"
	"github.com/iliyamo/styledecor/internal/repository/memory"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, ev.Key)
	return nil
}

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// fakeGateway resolves sessions from an in-memory table.
type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*payment.Session
	created  []payment.CheckoutRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*payment.Session{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	return &payment.Session{ID: "chrg_new", URL: "https://pay.example/chrg_new", Status: "pending"}, nil
}

func (g *fakeGateway) ResolveSession(_ context.Context, id string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) addPaid(id, bookingID, txID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id] = &payment.Session{
		ID:              id,
		Status:          payment.StatusPaid,
		AmountTotal:     amount,
		Currency:        "thb",
		PaymentIntentID: txID,
		CustomerEmail:   "client@example.com",
		Metadata:        map[string]string{"bookingId": bookingID, "serviceName": "Wedding stage"},
	}
}

type fixture struct {
	store      *memory.Store
	events     *recordingPublisher
	gateway    *fakeGateway
	bookings   *BookingEngine
	roster     *RosterEngine
	settlement *SettlementEngine
	catalog    *CatalogEngine
	users      *UserEngine
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	pub := &recordingPublisher{}
	gw := newFakeGateway()
	clock := func() time.Time { return fixedNow }

	f := &fixture{
		store:      st,
		events:     pub,
		gateway:    gw,
		bookings:   NewBookingEngine(st.Bookings, st.Decorators, st.Services, st.Earnings, pub),
		roster:     NewRosterEngine(st.Decorators, st.Users, st.Earnings, pub),
		settlement: NewSettlementEngine(st.Bookings, st.Payments, gw, pub, "thb", "https://styledecor.example/"),
		catalog:    NewCatalogEngine(st.Services, st.ServiceCenters),
		users:      NewUserEngine(st.Users, st.Decorators),
		reconciler: NewReconciler(st.Bookings, st.Decorators, st.Earnings),
	}
	f.bookings.Now = clock
	f.roster.Now = clock
	f.settlement.Now = clock
	f.users.Now = clock
	f.reconciler.Now = clock
	return f
}

func (f *fixture) service(t *testing.T, cost string) *model.Service {
	t.Helper()
	s, err := f.catalog.CreateService(context.Background(), ServiceInput{
		Name:     "Wedding stage",
		Category: "wedding",
		Cost:     decimal.RequireFromString(cost),
	}, "admin@example.com")
	require.NoError(t, err)
	return s
}

func (f *fixture) booking(t *testing.T, serviceID, qty string) *model.Booking {
	t.Helper()
	b, err := f.bookings.CreateBooking(context.Background(), CreateBookingInput{
		BookedByEmail: "client@example.com",
		ServiceID:     serviceID,
		BookingType:   model.BookingTypeDecoration,
		Quantity:      qty,
	})
	require.NoError(t, err)
	return b
}

// approvedDecorator applies and approves a decorator in city.
func (f *fixture) approvedDecorator(t *testing.T, email, city string) *model.Decorator {
	t.Helper()
	ctx := context.Background()
	d, err := f.roster.Apply(ctx, ApplyInput{Email: email, Name: "Deco", City: city, Specialization: "wedding"})
	require.NoError(t, err)
	d, err = f.roster.Review(ctx, d.ID, ReviewApprove)
	require.NoError(t, err)
	return d
}

// paidBooking creates a booking and settles a payment of amount for it.
func (f *fixture) paidBooking(t *testing.T, amount string) *model.Booking {
	t.Helper()
	svc := f.service(t, amount)
	b := f.booking(t, svc.ID, "1")
	f.gateway.addPaid("chrg_"+b.ID, b.ID, "trxn_"+b.ID, decimal.RequireFromString(amount))
	_, err := f.settlement.Settle(context.Background(), "chrg_"+b.ID)
	require.NoError(t, err)
	return b
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/styledecor/internal/config"
	"github.com/iliyamo/styledecor/internal/handler"
	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/payment"
	"github.com/iliyamo/styledecor/internal/repository/memory"
	"github.com/iliyamo/styledecor/internal/service"
	"github.com/iliyamo/styledecor/internal/utils"
)

const (
	secret    = "router-test-secret"
	adminMail = "admin@example.com"
	client    = "client@example.com"
	decorMail = "decor@example.com"
)

// gateway hands out sequential charges and lets the test mark them paid.
type gateway struct {
	mu       sync.Mutex
	n        int
	sessions map[string]*payment.Session
}

func (g *gateway) CreateSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	id := "chrg_test_" + string(rune('0'+g.n))
	g.sessions[id] = &payment.Session{
		ID:              id,
		URL:             "https://pay.example/" + id,
		Status:          "pending",
		AmountTotal:     req.Amount,
		Currency:        req.Currency,
		PaymentIntentID: "trxn_" + id,
		CustomerEmail:   req.Metadata["customerEmail"],
		Metadata:        req.Metadata,
	}
	cp := *g.sessions[id]
	return &cp, nil
}

func (g *gateway) ResolveSession(_ context.Context, id string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *gateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].Status = payment.StatusPaid
}

type env struct {
	e     *echo.Echo
	store *memory.Store
	gw    *gateway
}

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		JWTSecret:       secret,
		AccessTTLMin:    5,
		PaymentCurrency: "thb",
		SiteDomain:      "http://localhost:5173",
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return buildEnv(t, testConfig(), nil)
}

// newRedisEnv serves the API with caching and rate limiting backed by an
// in-process Redis.
func newRedisEnv(t *testing.T, tweak func(*config.Config)) (*env, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Cache = config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	if tweak != nil {
		tweak(&cfg)
	}
	return buildEnv(t, cfg, rdb), mr
}

func buildEnv(t *testing.T, cfg config.Config, rdb *redis.Client) *env {
	t.Helper()
	st := memory.New()
	gw := &gateway{sessions: map[string]*payment.Session{}}

	users := service.NewUserEngine(st.Users, st.Decorators)
	bookings := service.NewBookingEngine(st.Bookings, st.Decorators, st.Services, st.Earnings, nil)
	roster := service.NewRosterEngine(st.Decorators, st.Users, st.Earnings, nil)
	settlement := service.NewSettlementEngine(st.Bookings, st.Payments, gw, nil, cfg.PaymentCurrency, cfg.SiteDomain)
	catalog := service.NewCatalogEngine(st.Services, st.ServiceCenters)

	e := echo.New()
	Register(e, Handlers{
		Auth:       handler.NewAuthHandler(cfg, users),
		Bookings:   handler.NewBookingHandler(bookings, users),
		Decorators: handler.NewDecoratorHandler(roster, bookings),
		Payments:   handler.NewPaymentHandler(settlement),
		Catalog:    handler.NewCatalogHandler(catalog),
		Admin:      handler.NewAdminHandler(service.NewReconciler(st.Bookings, st.Decorators, st.Earnings)),
	}, Deps{Cfg: cfg, Redis: rdb, Roles: users.Role})

	_, err := st.Users.Upsert(context.Background(), &model.User{Email: adminMail, Role: model.RoleAdmin})
	require.NoError(t, err)
	return &env{e: e, store: st, gw: gw}
}

func (v *env) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if email != "" {
		tok, err := utils.NewAccessToken(secret, email, 5)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func amount(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(toString(v)), `"`))
	require.NoError(t, err)
	return d
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	}
	return ""
}

func TestIdentityGate(t *testing.T) {
	v := newEnv(t)

	rec := v.do(t, http.MethodGet, "/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
	rec = httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/bookings?email=someone@example.com", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/users/someone@example.com/role", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/admin/bookings", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDevTokenIssuesUsableToken(t *testing.T) {
	v := newEnv(t)
	rec := v.do(t, http.MethodPost, "/v1/auth/dev-token", "", map[string]string{"email": client})
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode(t, rec)["token"].(string)

	req := httptest.NewRequest(http.MethodPost, "/v1/users/sign-in", strings.NewReader(`{"name":"Cli"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	out := httptest.NewRecorder()
	v.e.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, model.RoleClient, decode(t, out)["role"])
}

func TestBookingMarketplaceFlow(t *testing.T) {
	v := newEnv(t)

	// Catalog.
	rec := v.do(t, http.MethodPost, "/v1/admin/services", adminMail, map[string]any{
		"service_name": "Wedding stage", "service_category": "wedding", "cost": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	serviceID := decode(t, rec)["_id"].(string)

	rec = v.do(t, http.MethodGet, "/v1/services?category=wedding", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), serviceID)

	// Client books.
	rec = v.do(t, http.MethodPost, "/v1/users/sign-in", client, map[string]string{"name": "Cli"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.do(t, http.MethodPost, "/v1/bookings", client, map[string]any{
		"serviceId": serviceID, "quantity": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(t, http.MethodPost, "/v1/bookings", client, map[string]any{
		"serviceId": serviceID, "quantity": 2, "bookedByEmail": "other@example.com",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodPost, "/v1/bookings", client, map[string]any{
		"serviceId": serviceID, "quantity": 2, "eventDate": "2025-07-01", "location": "Dhaka",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decode(t, rec)
	bookingID := booking["_id"].(string)
	assert.Equal(t, model.BookingPending, booking["status"])
	assert.True(t, amount(t, booking["payableAmount"]).Equal(decimal.NewFromInt(2000)))

	// Decorator applies and is approved.
	rec = v.do(t, http.MethodPost, "/v1/users/sign-in", decorMail, map[string]string{"name": "Deco"})
	require.Equal(t, http.StatusOK, rec.Code)
	apply := map[string]any{
		"decoratorEmail": decorMail, "name": "Deco", "specialization": "wedding",
		"serviceLocation": map[string]string{"city": "Dhaka"},
	}
	rec = v.do(t, http.MethodPost, "/v1/decorators/apply", decorMail, apply)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decoratorID := decode(t, rec)["_id"].(string)
	rec = v.do(t, http.MethodPost, "/v1/decorators/apply", decorMail, apply)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/decorator/me", decorMail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "not a decorator before approval")

	rec = v.do(t, http.MethodPatch, "/v1/admin/decorators/"+decoratorID+"/review", adminMail, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = v.do(t, http.MethodPatch, "/v1/admin/decorators/"+decoratorID+"/review", adminMail, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/decorator/me", decorMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.do(t, http.MethodPatch, "/v1/decorator/availability", decorMail, map[string]any{"isAvailable": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = v.do(t, http.MethodPatch, "/v1/decorator/availability", decorMail, map[string]any{"isAvailable": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/decorators?city=Dhaka", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), decoratorID)

	// Assignment and planning.
	rec = v.do(t, http.MethodPatch, "/v1/admin/bookings/"+bookingID+"/assign", adminMail, map[string]string{"decoratorId": decoratorID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingAssigned, decode(t, rec)["status"])
	rec = v.do(t, http.MethodPatch, "/v1/admin/bookings/"+bookingID+"/assign", adminMail, map[string]string{"decoratorId": decoratorID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(t, http.MethodGet, "/v1/bookings/"+bookingID, decorMail, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "assigned decorator can read the booking")

	rec = v.do(t, http.MethodPatch, "/v1/decorator/bookings/"+bookingID+"/status", decorMail, map[string]string{"status": "planning"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = v.do(t, http.MethodPatch, "/v1/decorator/bookings/"+bookingID+"/status", decorMail, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "completion needs a settled payment")

	// Payment.
	rec = v.do(t, http.MethodPost, "/v1/payments/checkout", decorMail, map[string]string{"bookingId": bookingID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = v.do(t, http.MethodPost, "/v1/payments/checkout", client, map[string]string{"bookingId": bookingID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionID := decode(t, rec)["sessionId"].(string)

	rec = v.do(t, http.MethodPost, "/v1/payments/confirm", client, map[string]string{"sessionId": sessionID})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "not paid yet")

	v.gw.pay(sessionID)
	rec = v.do(t, http.MethodPost, "/v1/payments/confirm", client, map[string]string{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "trxn_"+sessionID, decode(t, rec)["transactionId"])

	rec = v.do(t, http.MethodPost, "/v1/payments/confirm", client, map[string]string{"sessionId": sessionID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	webhook := map[string]any{"key": "charge.complete", "data": map[string]string{"object": "charge", "id": sessionID}}
	rec = v.do(t, http.MethodPost, "/v1/payments/webhook", "", webhook)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["settled"])

	rec = v.do(t, http.MethodGet, "/v1/payments", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	assert.Len(t, ledger, 1)

	// Completion and earnings.
	rec = v.do(t, http.MethodPatch, "/v1/decorator/bookings/"+bookingID+"/status", decorMail, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingCompleted, decode(t, rec)["status"])

	rec = v.do(t, http.MethodGet, "/v1/decorator/earnings", decorMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.True(t, amount(t, summary["totalEarned"]).Equal(decimal.NewFromInt(500)))

	rec = v.do(t, http.MethodPatch, "/v1/admin/earnings/"+bookingID+"/payout", adminMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = v.do(t, http.MethodPatch, "/v1/admin/earnings/"+bookingID+"/payout", adminMail, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = v.do(t, http.MethodPost, "/v1/admin/reconcile", adminMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["repairs"])
}

func TestRejectAndConsultation(t *testing.T) {
	v := newEnv(t)
	ctx := context.Background()

	rec := v.do(t, http.MethodPost, "/v1/bookings", client, map[string]any{"bookingType": "consultation"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	consult := decode(t, rec)["_id"].(string)

	rec = v.do(t, http.MethodPatch, "/v1/admin/bookings/"+consult+"/status", adminMail, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingConfirmed, decode(t, rec)["status"])

	rec = v.do(t, http.MethodPatch, "/v1/admin/bookings/"+consult+"/status", adminMail, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	d := &model.Decorator{Email: decorMail, Name: "Deco", ApplicationStatus: model.ApplicationPending, AccountStatus: model.AccountActive}
	require.NoError(t, v.store.Decorators.Create(ctx, d))
	_, err := v.store.Users.Upsert(ctx, &model.User{Email: decorMail})
	require.NoError(t, err)
	rec = v.do(t, http.MethodPatch, "/v1/admin/decorators/"+d.ID+"/review", adminMail, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.do(t, http.MethodPatch, "/v1/admin/bookings/"+consult+"/assign", adminMail, map[string]string{"decoratorId": d.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = v.do(t, http.MethodPatch, "/v1/decorator/bookings/"+consult+"/reject", decorMail, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingAwaitingReassignment, decode(t, rec)["status"])

	rec = v.do(t, http.MethodPatch, "/v1/decorator/bookings/"+consult+"/reject", decorMail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got, err := v.store.Decorators.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	assert.Empty(t, got.AssignedBookings)

	rec = v.do(t, http.MethodDelete, "/v1/admin/bookings/"+consult, adminMail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = v.do(t, http.MethodGet, "/v1/bookings/"+consult, client, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// approvedDecorator seeds an approved, available decorator in city who can
// sign in to the workspace.
func (v *env) approvedDecorator(t *testing.T, email, city string) string {
	t.Helper()
	ctx := context.Background()
	d := &model.Decorator{Email: email, Name: "Deco", ApplicationStatus: model.ApplicationPending,
		AccountStatus: model.AccountActive, IsAvailable: true, ServiceLocation: model.ServiceLocation{City: city}}
	require.NoError(t, v.store.Decorators.Create(ctx, d))
	_, err := v.store.Users.Upsert(ctx, &model.User{Email: email})
	require.NoError(t, err)
	rec := v.do(t, http.MethodPatch, "/v1/admin/decorators/"+d.ID+"/review", adminMail, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return d.ID
}

func TestWorkspaceWritesPurgeRosterCache(t *testing.T) {
	v, mr := newRedisEnv(t, nil)
	id := v.approvedDecorator(t, decorMail, "Dhaka")

	rec := v.do(t, http.MethodGet, "/v1/decorators?city=Dhaka", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), id)

	rec = v.do(t, http.MethodGet, "/v1/decorators?city=Dhaka", "", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.NotEmpty(t, mr.Keys())

	rec = v.do(t, http.MethodPatch, "/v1/decorator/availability", decorMail, map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, mr.Keys(), "workspace write drops cached responses")

	rec = v.do(t, http.MethodGet, "/v1/decorators?city=Dhaka", "", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), id)

	// failed writes leave the cache alone
	rec = v.do(t, http.MethodGet, "/v1/decorators?city=Dhaka", "", nil)
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	rec = v.do(t, http.MethodPatch, "/v1/decorator/availability", decorMail, map[string]any{"isAvailable": "no"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, mr.Keys())
}

func TestWebhookHasItsOwnRateBudget(t *testing.T) {
	v, _ := newRedisEnv(t, func(c *config.Config) {
		c.Cache.Enabled = false
		c.RateLimit = config.RateLimitConfig{
			Enabled: true, Prefix: "rl", KeyStrategy: config.KeyByPrincipal, TTL: time.Minute,
			Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
			WebhookCapacity: 10, WebhookRefillTokens: 1,
		}
	})

	for i := 0; i < 2; i++ {
		rec := v.do(t, http.MethodGet, "/v1/services", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := v.do(t, http.MethodGet, "/v1/services", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// the gateway retries from the same address and is still heard
	unknown := map[string]any{"key": "charge.complete", "data": map[string]string{"object": "charge", "id": "chrg_missing"}}
	for i := 0; i < 3; i++ {
		rec = v.do(t, http.MethodPost, "/v1/payments/webhook", "", unknown)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}

	// signed-in traffic is budgeted per principal
	rec = v.do(t, http.MethodGet, "/v1/bookings", client, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

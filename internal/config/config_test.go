package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "memory")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, StoreMemory, c.StoreBackend)
	assert.Equal(t, 60, c.AccessTTLMin)
	assert.Equal(t, "thb", c.PaymentCurrency)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.False(t, c.IsProd())
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.True(t, c.Cache.Methods["GET"])
	assert.Equal(t, 60, c.RateLimit.Capacity)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "mongo")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadPaymentCurrency(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PAYMENT_CURRENCY", " JPY ")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jpy", c.PaymentCurrency)

	t.Setenv("PAYMENT_CURRENCY", "baht")
	_, err = Load()
	assert.Error(t, err)
}

func TestRateLimitShorthands(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c, err := LoadRateLimitConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL, "ttl is raised to five refill intervals")
}

func TestRedisHostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	c, err := LoadRedisConfig()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", c.Addr)
}

func TestCacheMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c, err := LoadCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
}

func TestRateLimitBudgets(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "30")
	t.Setenv("RATE_LIMIT_WEBHOOK_CAPACITY", "200")

	c, err := LoadRateLimitConfig()
	require.NoError(t, err)
	assert.Equal(t, KeyByPrincipal, c.KeyStrategy)

	b, ok := c.BudgetFor(ScopeBrowse)
	require.True(t, ok)
	assert.Equal(t, 30, b.Capacity)

	b, ok = c.BudgetFor(ScopeWebhook)
	require.True(t, ok)
	assert.Equal(t, 200, b.Capacity)
	assert.Equal(t, 20, b.RefillTokens)

	c.WebhookCapacity = 0
	_, ok = c.BudgetFor(ScopeWebhook)
	assert.False(t, ok, "zero capacity exempts gateway deliveries")
}

func TestRateLimitRejectsUnknownKeyStrategy(t *testing.T) {
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")
	_, err := LoadRateLimitConfig()
	assert.Error(t, err)
}

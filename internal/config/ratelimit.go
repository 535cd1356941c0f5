package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Rate limit scopes.  Each route group draws from its own bucket so that
// browsing traffic cannot starve account writes or gateway deliveries.
const (
	ScopeBrowse    = "browse"
	ScopeAccount   = "account"
	ScopeWorkspace = "workspace"
	ScopeAdmin     = "admin"
	ScopeWebhook   = "webhook"
)

// Rate limit key strategies.  Anonymous requests always fall back to the
// client IP.
const (
	KeyByPrincipal      = "principal"
	KeyByIP             = "ip"
	KeyByPrincipalRoute = "principal_route"
)

// Budget is the shape of one token bucket.
type Budget struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
}

// RateLimitConfig drives the Redis token buckets.  The default budget
// covers browse, account, workspace and admin traffic; the payment gateway
// gets its own, larger budget since it retries deliveries until they are
// acknowledged.  Burst and RefillEvery are shorthands for the default
// budget.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"RATE_LIMIT_KEY_STRATEGY" default:"principal"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	Debug          bool          `envconfig:"RATE_LIMIT_DEBUG" default:"false"`
	Burst          int           `envconfig:"RATE_LIMIT_BURST" default:"-1"`
	RefillEvery    time.Duration `envconfig:"RATE_LIMIT_REFILL_EVERY" default:"0"`

	// WebhookCapacity 0 exempts gateway deliveries from limiting.
	WebhookCapacity     int `envconfig:"RATE_LIMIT_WEBHOOK_CAPACITY" default:"600"`
	WebhookRefillTokens int `envconfig:"RATE_LIMIT_WEBHOOK_REFILL_TOKENS" default:"20"`
}

func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := envconfig.Process("", &c); err != nil {
		return RateLimitConfig{}, err
	}
	c.KeyStrategy = strings.ToLower(strings.TrimSpace(c.KeyStrategy))
	switch c.KeyStrategy {
	case KeyByPrincipal, KeyByIP, KeyByPrincipalRoute:
	default:
		return RateLimitConfig{}, fmt.Errorf("RATE_LIMIT_KEY_STRATEGY must be %q, %q or %q, got %q",
			KeyByPrincipal, KeyByIP, KeyByPrincipalRoute, c.KeyStrategy)
	}
	c.normalize()
	return c, nil
}

func (c *RateLimitConfig) normalize() {
	if c.Burst > 0 {
		c.Capacity = c.Burst
	}
	if c.RefillEvery > 0 {
		c.RefillTokens = 1
		c.RefillInterval = c.RefillEvery
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if c.WebhookCapacity < 0 {
		c.WebhookCapacity = 0
	}
	if c.WebhookRefillTokens < 1 {
		c.WebhookRefillTokens = 1
	}
	minTTL := 5 * c.RefillInterval
	if c.TTL < minTTL {
		c.TTL = minTTL
	}
}

// BudgetFor returns the bucket shape for scope.  ok is false when the scope
// is not limited at all.
func (c RateLimitConfig) BudgetFor(scope string) (b Budget, ok bool) {
	if scope == ScopeWebhook {
		if c.WebhookCapacity == 0 {
			return Budget{}, false
		}
		return Budget{Capacity: c.WebhookCapacity, RefillTokens: c.WebhookRefillTokens, RefillInterval: c.RefillInterval}, true
	}
	return Budget{Capacity: c.Capacity, RefillTokens: c.RefillTokens, RefillInterval: c.RefillInterval}, true
}

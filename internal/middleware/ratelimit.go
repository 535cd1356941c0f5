package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/config"
)

// takeScript refills the bucket at KEYS[1] for the elapsed intervals and
// takes one token.  It returns {allowed, tokens left, retry after ms}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now_ms

local steps = math.floor(math.max(0, now_ms - ts) / interval_ms)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  ts = ts + steps * interval_ms
end

local allowed, wait = 0, 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, interval_ms - (now_ms - ts))
end

redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', key, ttl)
return {allowed, tokens, wait}
`)

// take is the outcome of drawing one token.
type take struct {
	Allowed   bool
	Remaining int64
	RetryMs   int64
}

// bucketStore draws tokens from the bucket named key.
type bucketStore interface {
	Take(ctx context.Context, key string, b config.Budget, ttl time.Duration) (take, error)
}

type redisBuckets struct{ rdb *redis.Client }

func (r redisBuckets) Take(ctx context.Context, key string, b config.Budget, ttl time.Duration) (take, error) {
	vals, err := takeScript.Run(ctx, r.rdb, []string{key},
		time.Now().UnixMilli(), b.Capacity, b.RefillTokens, b.RefillInterval.Milliseconds(),
		int64(ttl/time.Second)).Int64Slice()
	if err != nil {
		return take{}, err
	}
	if len(vals) != 3 {
		return take{}, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}
	return take{Allowed: vals[0] == 1, Remaining: vals[1], RetryMs: vals[2]}, nil
}

// RateLimit throttles a route group with the token bucket of scope.  Gateway
// deliveries (config.ScopeWebhook) draw from their own budget keyed on the
// caller IP; every other scope keys on the principal per cfg.KeyStrategy.
// Redis failures fail open.  With no client, Enabled false or an exempt
// scope the middleware is a pass-through.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, scope string) echo.MiddlewareFunc {
	if rdb == nil {
		return passThrough
	}
	return limitWith(cfg, redisBuckets{rdb: rdb}, scope)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func limitWith(cfg config.RateLimitConfig, buckets bucketStore, scope string) echo.MiddlewareFunc {
	budget, limited := cfg.BudgetFor(scope)
	if !cfg.Enabled || !limited {
		return passThrough
	}
	limit := strconv.Itoa(budget.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, scope, c)
			t, err := buckets.Take(c.Request().Context(), key, budget, cfg.TTL)
			if err != nil {
				zap.L().Warn("ratelimit: redis error, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(t.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if t.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(float64(t.RetryMs) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			zap.L().Debug("ratelimit: blocked", zap.String("scope", scope), zap.String("key", key))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// rateKey names the bucket for a request: prefix, scope, then the caller.
// Anonymous callers and the webhook scope are always keyed by IP.
func rateKey(cfg config.RateLimitConfig, scope string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	who := Principal(c)
	if scope == config.ScopeWebhook || who == "" || cfg.KeyStrategy == config.KeyByIP {
		return strings.Join([]string{cfg.Prefix, scope, "ip", ip}, ":")
	}
	parts := []string{cfg.Prefix, scope, "principal", who}
	if cfg.KeyStrategy == config.KeyByPrincipalRoute {
		parts = append(parts, c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}

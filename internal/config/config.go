// Package config loads application configuration from the environment.  A
// .env file in the working directory is applied first when present; real
// environment variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag.
type Config struct {
	Env          string `envconfig:"APP_ENV" default:"dev"`
	Port         string `envconfig:"APP_PORT" default:"8080"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"mysql"`

	DBUser string `envconfig:"DB_USER" default:"root"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" default:"styledecor"`

	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`

	OmisePublicKey    string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey    string `envconfig:"OMISE_SECRET_KEY"`
	PaymentCurrency   string `envconfig:"PAYMENT_CURRENCY" default:"thb"`
	PaymentSourceType string `envconfig:"PAYMENT_SOURCE_TYPE" default:"promptpay"`
	SiteDomain        string `envconfig:"SITE_DOMAIN" default:"http://localhost:5173"`

	// RabbitURL empty disables event publishing.
	RabbitURL            string `envconfig:"RABBITMQ_URL"`
	EventsExchange       string `envconfig:"EVENTS_EXCHANGE" default:"styledecor.events"`
	QueueConsumerEnabled bool   `envconfig:"QUEUE_CONSUMER_ENABLED" default:"false"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	Redis     RedisConfig     `ignored:"true"`
	RateLimit RateLimitConfig `ignored:"true"`
	Cache     CacheConfig     `ignored:"true"`
}

// IsProd reports whether the process runs in production.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production") }

// Load reads .env (if any) and the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	if c.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET must not be empty")
	}
	switch c.StoreBackend {
	case StoreMySQL, StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMySQL, StoreMemory, c.StoreBackend)
	}
	c.PaymentCurrency = strings.ToLower(strings.TrimSpace(c.PaymentCurrency))
	if !isCurrencyCode(c.PaymentCurrency) {
		return Config{}, fmt.Errorf("PAYMENT_CURRENCY must be a three-letter ISO 4217 code, got %q", c.PaymentCurrency)
	}
	if c.AccessTTLMin <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTTLMin)
	}

	var err error
	if c.Redis, err = LoadRedisConfig(); err != nil {
		return Config{}, err
	}
	if c.RateLimit, err = LoadRateLimitConfig(); err != nil {
		return Config{}, err
	}
	if c.Cache, err = LoadCacheConfig(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

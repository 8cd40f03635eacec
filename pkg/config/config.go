package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv           = "POS_APP_ENV"
	EnvPort             = "POS_APP_PORT"
	EnvLogLevel         = "POS_LOG_LEVEL"
	EnvLogFormat        = "POS_LOG_FORMAT"
	EnvStoreAPIBaseURL  = "POS_STORE_API_BASE_URL"
	EnvStoreAPITimeout  = "POS_STORE_API_TIMEOUT"
	EnvStoreAPITimezone = "POS_STORE_API_TIMEZONE"
	EnvRedisURL         = "POS_REDIS_URL"
	EnvJWTSecret        = "POS_JWT_SECRET"
	EnvJWTIssuer        = "POS_JWT_ISSUER"
	EnvJWTExpMins       = "POS_JWT_EXPIRATION_MINUTES"
	EnvCheckoutTaxRate  = "POS_CHECKOUT_TAX_RATE"
	EnvCheckoutNote     = "POS_CHECKOUT_ORDER_NOTE"
	EnvCheckoutIdleTTL  = "POS_CHECKOUT_SESSION_IDLE_TTL"
	EnvCheckoutSearch   = "POS_CHECKOUT_SEARCH_LIMIT"
	EnvIdempotencyTTL   = "POS_IDEMPOTENCY_TTL"
)

type Config struct {
	App         AppConfig
	StoreAPI    StoreAPIConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Checkout    CheckoutConfig
	Idempotency IdempotencyConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.StoreAPI.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated list of POS screen origins.
	CORSOrigins []string `envconfig:"POS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreAPIConfig points at the store backend that owns products, customers and orders.
type StoreAPIConfig struct {
	BaseURL  string        `envconfig:"POS_STORE_API_BASE_URL" required:"true"`
	Timeout  time.Duration `envconfig:"POS_STORE_API_TIMEOUT" default:"10s"`
	Timezone string        `envconfig:"POS_STORE_API_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
}

// Location resolves the configured store timezone.
func (s StoreAPIConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading store timezone %q: %w", name, err)
	}
	return loc, nil
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" default:"720"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type CheckoutConfig struct {
	TaxRate     decimal.Decimal `envconfig:"POS_CHECKOUT_TAX_RATE" default:"0.10"`
	OrderNote   string          `envconfig:"POS_CHECKOUT_ORDER_NOTE" default:"Point-of-sale sale"`
	IdleTTL     time.Duration   `envconfig:"POS_CHECKOUT_SESSION_IDLE_TTL" default:"8h"`
	SearchLimit int             `envconfig:"POS_CHECKOUT_SEARCH_LIMIT" default:"10"`
}

func (c CheckoutConfig) validate() error {
	if c.TaxRate.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvCheckoutTaxRate)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutSearch)
	}
	return nil
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"POS_IDEMPOTENCY_TTL" default:"24h"`
}

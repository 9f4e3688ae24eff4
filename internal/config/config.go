// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type DatabaseConfig struct {
	URL             string `yaml:"url" env:"DATABASE_URL"`
	MaxConns        int32  `yaml:"max_conns"`
	MigrationsTable string `yaml:"migrations_table"`
}

// RedisConfig is optional: with an empty URL the service runs without the plan
// cache, settlement locks and rate limiting.
type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaystackConfig struct {
	SecretKey   string        `yaml:"secret_key" env:"PAYSTACK_SECRET_KEY"`
	BaseURL     string        `yaml:"base_url"`
	CallbackURL string        `yaml:"callback_url" env:"PAYSTACK_CALLBACK_URL"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer     string `yaml:"issuer"`
	AdminRole  string `yaml:"admin_role"`
	EmailClaim string `yaml:"email_claim"`
}

type CronConfig struct {
	Secret            string        `yaml:"secret" env:"CRON_SECRET"`
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	BatchSize         int           `yaml:"batch_size"`
	Workers           int           `yaml:"workers"`
}

// PagesConfig holds where browser redirects land after checkout.
type PagesConfig struct {
	SuccessURL string `yaml:"success_url"`
	FailureURL string `yaml:"failure_url"`
}

type RateLimitConfig struct {
	InitPerMinute int `yaml:"init_per_minute"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Paystack  PaystackConfig  `yaml:"paystack"`
	Auth      AuthConfig      `yaml:"auth"`
	Cron      CronConfig      `yaml:"cron"`
	Pages     PagesConfig     `yaml:"pages"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when empty or missing), then a
// .env file if present, then applies environment overrides and defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 20 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MigrationsTable == "" {
		cfg.Database.MigrationsTable = "goose_db_version"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Paystack.BaseURL == "" {
		cfg.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Paystack.Timeout <= 0 {
		cfg.Paystack.Timeout = 15 * time.Second
	}
	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "admin"
	}
	if cfg.Auth.EmailClaim == "" {
		cfg.Auth.EmailClaim = "email"
	}
	if cfg.Cron.ExpiryInterval <= 0 {
		cfg.Cron.ExpiryInterval = time.Hour
	}
	if cfg.Cron.ReconcileInterval <= 0 {
		cfg.Cron.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Cron.StaleAfter <= 0 {
		cfg.Cron.StaleAfter = 30 * time.Minute
	}
	if cfg.Cron.BatchSize <= 0 {
		cfg.Cron.BatchSize = 200
	}
	if cfg.Cron.Workers <= 0 {
		cfg.Cron.Workers = 4
	}
	if cfg.Pages.SuccessURL == "" {
		cfg.Pages.SuccessURL = "/payment/success"
	}
	if cfg.Pages.FailureURL == "" {
		cfg.Pages.FailureURL = "/payment/failed"
	}
	if cfg.RateLimit.InitPerMinute <= 0 {
		cfg.RateLimit.InitPerMinute = 5
	}
}

// Validate reports the first missing required setting. Gateway and cron secrets
// are only required outside dev mode.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Runtime.Dev {
		return nil
	}
	if c.Paystack.SecretKey == "" {
		return errors.New("paystack.secret_key is required")
	}
	if c.Cron.Secret == "" {
		return errors.New("cron.secret is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

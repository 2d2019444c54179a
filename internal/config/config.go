// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	VisitorCookie  string        `yaml:"visitor_cookie"`
	SecureCookies  bool          `yaml:"secure_cookies"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DATABASE_DRIVER"` // postgres|memory
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED"`
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // pending intent lifetime
}

type RazorpayConfig struct {
	KeyID            string `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret        string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
	BaseURL          string `yaml:"base_url"`
	ScriptURL        string `yaml:"script_url"`
	// VerifySignatures defaults to true; only -dev may set it to false.
	VerifySignatures *bool `yaml:"verify_signatures"`
	// Sandbox swaps the gateway API for an in-process fake. Dev only.
	Sandbox bool `yaml:"sandbox"`
}

// SignatureCheck reports whether success callbacks must carry a valid
// gateway signature.
func (r RazorpayConfig) SignatureCheck() bool {
	return r.VerifySignatures == nil || *r.VerifySignatures
}

type PaymentConfig struct {
	Razorpay        RazorpayConfig `yaml:"razorpay"`
	DisplayName     string         `yaml:"display_name"`
	Description     string         `yaml:"description"`
	SuccessRedirect string         `yaml:"success_redirect"`
	SessionTTL      time.Duration  `yaml:"session_ttl"` // how long an opened widget waits for a callback
	GuardTTL        time.Duration  `yaml:"guard_ttl"`   // upper bound on one checkout attempt
}

type ReferralConfig struct {
	BaseURL string        `yaml:"base_url" env:"REFERRAL_BASE_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

type IdentityConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"IDENTITY_JWT_SECRET"`
	Issuer    string `yaml:"issuer"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key" env:"IDENTITY_API_KEY"`
	LoginURL  string `yaml:"login_url"`
}

type LeadsConfig struct {
	RateLimit  int           `yaml:"rate_limit"`  // submissions per window per client
	RateWindow time.Duration `yaml:"rate_window"` // fixed window length
}

type SchedulerConfig struct {
	SessionIdle      time.Duration `yaml:"session_idle"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	PoolStatInterval time.Duration `yaml:"pool_stat_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Referral  ReferralConfig  `yaml:"referral"`
	Identity  IdentityConfig  `yaml:"identity"`
	Leads     LeadsConfig     `yaml:"leads"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment, applies defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 15*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 20*time.Second)
	if cfg.HTTP.VisitorCookie == "" {
		cfg.HTTP.VisitorCookie = "storefront_visitor"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)
	if cfg.Payment.Razorpay.BaseURL == "" {
		cfg.Payment.Razorpay.BaseURL = "https://api.razorpay.com"
	}
	if cfg.Payment.Razorpay.ScriptURL == "" {
		cfg.Payment.Razorpay.ScriptURL = "https://checkout.razorpay.com/v1/checkout.js"
	}
	if cfg.Payment.Razorpay.VerifySignatures == nil {
		on := true
		cfg.Payment.Razorpay.VerifySignatures = &on
	}
	if cfg.Payment.DisplayName == "" {
		cfg.Payment.DisplayName = "Storefront"
	}
	if cfg.Payment.SuccessRedirect == "" {
		cfg.Payment.SuccessRedirect = "/dashboard"
	}
	cfg.Payment.SessionTTL = orDefault(cfg.Payment.SessionTTL, 30*time.Minute)
	cfg.Payment.GuardTTL = orDefault(cfg.Payment.GuardTTL, cfg.Payment.SessionTTL+time.Minute)
	cfg.Referral.Timeout = orDefault(cfg.Referral.Timeout, 10*time.Second)
	if cfg.Leads.RateLimit <= 0 {
		cfg.Leads.RateLimit = 5
	}
	cfg.Leads.RateWindow = orDefault(cfg.Leads.RateWindow, time.Minute)
	cfg.Scheduler.SessionIdle = orDefault(cfg.Scheduler.SessionIdle, time.Hour)
	cfg.Scheduler.SweepInterval = orDefault(cfg.Scheduler.SweepInterval, 5*time.Minute)
	cfg.Scheduler.PoolStatInterval = orDefault(cfg.Scheduler.PoolStatInterval, 30*time.Second)
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Driver) {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required"))
		}
	case "memory":
		if !c.Runtime.Dev {
			errs = append(errs, errors.New("database.driver=memory is only allowed with -dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q not supported", c.Database.Driver))
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required when redis is enabled"))
	}
	switch {
	case c.Payment.Razorpay.Sandbox:
		if !c.Runtime.Dev {
			errs = append(errs, errors.New("payment.razorpay.sandbox is only allowed with -dev"))
		}
		if c.Payment.Razorpay.KeyID == "" {
			c.Payment.Razorpay.KeyID = "rzp_test_sandbox"
		}
	case c.Payment.Razorpay.KeyID == "" || c.Payment.Razorpay.KeySecret == "":
		errs = append(errs, errors.New("payment.razorpay.key_id and key_secret are required"))
	}
	if !c.Payment.Razorpay.Sandbox && !c.Payment.Razorpay.SignatureCheck() && !c.Runtime.Dev {
		errs = append(errs, errors.New("payment.razorpay.verify_signatures can only be disabled with -dev"))
	}
	if c.Referral.BaseURL == "" {
		errs = append(errs, errors.New("referral.base_url is required"))
	}
	if c.Identity.JWTSecret == "" {
		errs = append(errs, errors.New("identity.jwt_secret is required"))
	}
	return errors.Join(errs...)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the chat service.
// Environment variables are parsed with the HASTE_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"5000"`

	// Store selection: memory | sqlite | postgres | redis
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:""`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`

	BootstrapTimeoutSeconds int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`

	// Primary completion provider (OpenAI-compatible endpoint, Groq by default)
	PrimaryName    string `envconfig:"PRIMARY_NAME" default:"groq"`
	PrimaryBaseURL string `envconfig:"PRIMARY_BASE_URL" default:"https://api.groq.com/openai/v1"`
	PrimaryAPIKey  string `envconfig:"PRIMARY_API_KEY" default:""`
	PrimaryModel   string `envconfig:"PRIMARY_MODEL" default:"llama-3.3-70b-versatile"`

	// Secondary completion provider used on primary failure
	SecondaryName    string `envconfig:"SECONDARY_NAME" default:"openai"`
	SecondaryBaseURL string `envconfig:"SECONDARY_BASE_URL" default:"https://api.openai.com/v1"`
	SecondaryAPIKey  string `envconfig:"SECONDARY_API_KEY" default:""`
	SecondaryModel   string `envconfig:"SECONDARY_MODEL" default:"gpt-4o-mini"`

	MaxTokens              int     `envconfig:"MAX_TOKENS" default:"400"`
	Temperature            float64 `envconfig:"TEMPERATURE" default:"0.5"`
	ProviderTimeoutSeconds int     `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"20"`

	// Media providers
	VideoBaseURL     string `envconfig:"VIDEO_BASE_URL" default:"https://api.replicate.com/v1"`
	VideoAPIKey      string `envconfig:"VIDEO_API_KEY" default:""`
	VideoModel       string `envconfig:"VIDEO_MODEL" default:"minimax/video-01"`
	ImageBaseURL     string `envconfig:"IMAGE_BASE_URL" default:"https://api.openai.com/v1"`
	ImageAPIKey      string `envconfig:"IMAGE_API_KEY" default:""`
	ImageModel       string `envconfig:"IMAGE_MODEL" default:"gpt-image-1"`
	MediaTimeoutSecs int    `envconfig:"MEDIA_TIMEOUT_SECONDS" default:"120"`

	// Identity & session
	OwnerPhrase        string `envconfig:"OWNER_PHRASE" default:""`
	JWTSecret          string `envconfig:"JWT_SECRET" default:""`
	CookieName         string `envconfig:"COOKIE_NAME" default:"haste_id"`
	CookieMaxAgeDays   int    `envconfig:"COOKIE_MAX_AGE_DAYS" default:"365"`
	CookieSecure       bool   `envconfig:"COOKIE_SECURE" default:"false"`
	StudentModeEnabled bool   `envconfig:"STUDENT_MODE_ENABLED" default:"true"`

	// Plans
	PlansFile   string `envconfig:"PLANS_FILE" default:""`
	DefaultPlan string `envconfig:"DEFAULT_PLAN" default:"free"`

	// Billing
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`

	// Health
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates StoreDriver and derives it when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		switch {
		case c.PostgresDSN != "":
			c.StoreDriver = "postgres"
		case c.RedisAddr != "":
			c.StoreDriver = "redis"
		case c.SQLitePath != "":
			c.StoreDriver = "sqlite"
		default:
			c.StoreDriver = "memory"
		}
	}

	allowed := map[string]bool{"memory": true, "sqlite": true, "postgres": true, "redis": true}
	if !allowed[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	switch c.StoreDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("HASTE_SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("HASTE_POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("HASTE_REDIS_ADDR is required when STORE_DRIVER=redis")
		}
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("HASTE_MAX_TOKENS must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with HASTE_
// Example: HASTE_HTTP_PORT, HASTE_PRIMARY_API_KEY
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("HASTE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("store_driver", cfg.StoreDriver).
		Int("port", cfg.HTTPPort).
		Str("primary", cfg.PrimaryName).
		Str("primary_model", cfg.PrimaryModel).
		Str("secondary", cfg.SecondaryName).
		Str("secondary_model", cfg.SecondaryModel).
		Bool("owner_phrase_set", cfg.OwnerPhrase != "").
		Bool("jwt_enabled", cfg.JWTSecret != "").
		Str("plans_file", cfg.PlansFile).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		HTTPPort:                  5000,
		StoreDriver:               "memory",
		BootstrapTimeoutSeconds:   5,
		PrimaryName:               "primary",
		SecondaryName:             "secondary",
		MaxTokens:                 400,
		Temperature:               0.5,
		ProviderTimeoutSeconds:    2,
		MediaTimeoutSecs:          2,
		OwnerPhrase:               "open sesame",
		CookieName:                "haste_id",
		CookieMaxAgeDays:          365,
		StudentModeEnabled:        true,
		DefaultPlan:               "free",
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ProviderTimeout is the per-attempt deadline for completion providers.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// MediaTimeout is the deadline for a single media generation call.
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.MediaTimeoutSecs) * time.Second
}

// CookieMaxAge is the lifetime of the anonymous identity cookie.
func (c *Config) CookieMaxAge() time.Duration {
	return time.Duration(c.CookieMaxAgeDays) * 24 * time.Hour
}

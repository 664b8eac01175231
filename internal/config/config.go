// Package config defines the wallet bot's application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/wallet_chatbot/pkg/config"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const masked = "********"

// AppConfig holds all application configuration
type AppConfig struct {
	config.CommonConfig `yaml:",inline"`

	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"wallet-bot"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Telegram TelegramConfig          `yaml:"telegram"`
	Store    StoreConfig             `yaml:"store"`
	Database config.DatabaseConfig   `yaml:"database"`
	Auth     AuthConfig              `yaml:"auth"`
	Sessions SessionConfig           `yaml:"sessions"`
	Finance  FinanceConfig           `yaml:"finance"`
	HTTP     config.HTTPServerConfig `yaml:"http"`
	Metrics  config.MetricsConfig    `yaml:"metrics"`
}

// StoreConfig selects the session store implementation.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" yaml:"driver" default:"postgres"`
	// AutoMigrate applies pending migrations when the bot starts.
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" yaml:"auto_migrate"`
}

// AuthConfig holds the shared-secret login settings.
type AuthConfig struct {
	Enabled bool `env:"AUTH_ENABLED" yaml:"enabled"`
	// Secret is the shared password in plain text or as a bcrypt hash.
	Secret         string `env:"AUTH_SECRET" yaml:"secret"`
	MaxAttempts    int    `env:"AUTH_MAX_ATTEMPTS" yaml:"max_attempts" default:"3"`
	LockoutMinutes int    `env:"AUTH_LOCKOUT_MINUTES" yaml:"lockout_minutes" default:"30"`
}

// LockoutWindow returns the lockout as a duration.
func (a AuthConfig) LockoutWindow() time.Duration {
	return time.Duration(a.LockoutMinutes) * time.Minute
}

// SessionConfig holds session lifetimes and the cleanup interval.
type SessionConfig struct {
	LifetimeMinutes     int           `env:"SESSION_LIFETIME_MINUTES" yaml:"lifetime_minutes" default:"15"`
	AuthLifetimeMinutes int           `env:"AUTH_SESSION_LIFETIME_MINUTES" yaml:"auth_lifetime_minutes" default:"1440"`
	CleanupInterval     time.Duration `env:"SESSION_CLEANUP_INTERVAL" yaml:"cleanup_interval" default:"1m"`
}

// Lifetime is the default window of a new session.
func (s SessionConfig) Lifetime() time.Duration {
	return time.Duration(s.LifetimeMinutes) * time.Minute
}

// AuthLifetime is the window of an authenticated session.
func (s SessionConfig) AuthLifetime() time.Duration {
	return time.Duration(s.AuthLifetimeMinutes) * time.Minute
}

// FinanceConfig points at the wallet aggregation API.
type FinanceConfig struct {
	BaseURL string `env:"FINANCE_API_URL" yaml:"base_url" required:"true"`
	APIKey  string `env:"FINANCE_API_KEY" yaml:"api_key"`
	// SigningKey signs per-chat bearer tokens when set.
	SigningKey string        `env:"FINANCE_SIGNING_KEY" yaml:"signing_key"`
	Timeout    time.Duration `env:"FINANCE_TIMEOUT" yaml:"timeout" default:"15s"`
	// HealthPath is probed by the readiness check; empty disables it.
	HealthPath string `env:"FINANCE_HEALTH_PATH" yaml:"health_path" default:"/health"`
}

// HealthURL is the readiness target of the finance API.
func (f FinanceConfig) HealthURL() string {
	if f.HealthPath == "" {
		return ""
	}
	return strings.TrimSuffix(f.BaseURL, "/") + "/" + strings.TrimPrefix(f.HealthPath, "/")
}

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error

	if err := c.CommonConfig.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Telegram.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if err := c.Database.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	default:
		result = multierror.Append(result, fmt.Errorf("store driver must be %s or %s, got %q", StoreMemory, StorePostgres, c.Store.Driver))
	}

	if c.Auth.Enabled && c.Auth.Secret == "" {
		result = multierror.Append(result, fmt.Errorf("auth secret is required when auth is enabled"))
	}
	if c.Auth.MaxAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("auth max_attempts must be positive, got %d", c.Auth.MaxAttempts))
	}
	if c.Auth.LockoutMinutes < 1 {
		result = multierror.Append(result, fmt.Errorf("auth lockout_minutes must be positive, got %d", c.Auth.LockoutMinutes))
	}

	if c.Sessions.LifetimeMinutes < 1 {
		result = multierror.Append(result, fmt.Errorf("session lifetime_minutes must be positive, got %d", c.Sessions.LifetimeMinutes))
	}
	if c.Sessions.AuthLifetimeMinutes < c.Sessions.LifetimeMinutes {
		result = multierror.Append(result, fmt.Errorf("auth_lifetime_minutes must be at least lifetime_minutes"))
	}
	if c.Sessions.CleanupInterval < time.Second {
		result = multierror.Append(result, fmt.Errorf("session cleanup_interval must be at least 1s, got %s", c.Sessions.CleanupInterval))
	}

	if !strings.HasPrefix(c.Finance.BaseURL, "http://") && !strings.HasPrefix(c.Finance.BaseURL, "https://") {
		result = multierror.Append(result, fmt.Errorf("finance base_url must be an http(s) URL, got %q", c.Finance.BaseURL))
	}
	if c.Finance.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("finance timeout must be greater than 0"))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// Redacted returns a copy with every secret masked.
func (c AppConfig) Redacted() AppConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return masked
	}
	c.Telegram.BotToken = mask(c.Telegram.BotToken)
	c.Auth.Secret = mask(c.Auth.Secret)
	c.Finance.APIKey = mask(c.Finance.APIKey)
	c.Finance.SigningKey = mask(c.Finance.SigningKey)
	c.Database.Password = mask(c.Database.Password)
	if c.Database.URL != "" {
		c.Database.URL = masked
	}
	return c
}

// YAML renders the redacted configuration.
func (c AppConfig) YAML() (string, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("environment", c.Environment),
		logger.StringField("log_level", c.LogLevel),
		logger.StringField("store_driver", c.Store.Driver),
		logger.BoolField("auth_enabled", c.Auth.Enabled),
		logger.IntField("auth_max_attempts", c.Auth.MaxAttempts),
		logger.IntField("session_lifetime_minutes", c.Sessions.LifetimeMinutes),
		logger.StringField("finance_api_url", c.Finance.BaseURL),
		logger.IntField("http_port", c.HTTP.Port),
		logger.IntField("telegram_workers", c.Telegram.Workers),
	)
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/pkg/config"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

func loadFromEnv(t *testing.T, vars map[string]string) (AppConfig, error) {
	t.Helper()
	os.Clearenv()
	for k, v := range vars {
		t.Setenv(k, v)
	}
	var cfg AppConfig
	err := config.GetConfigFromEnvVars(&cfg)
	return cfg, err
}

func TestDefaults(t *testing.T) {
	cfg, err := loadFromEnv(t, map[string]string{"FINANCE_API_URL": "https://wallet.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "wallet-bot", cfg.ServiceName)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 3, cfg.Auth.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutWindow())
	assert.Equal(t, 15*time.Minute, cfg.Sessions.Lifetime())
	assert.Equal(t, 24*time.Hour, cfg.Sessions.AuthLifetime())
	assert.Equal(t, time.Minute, cfg.Sessions.CleanupInterval)
	assert.Equal(t, 15*time.Second, cfg.Finance.Timeout)
	assert.Equal(t, "https://wallet.example.com/health", cfg.Finance.HealthURL())
	assert.Equal(t, 4, cfg.Telegram.Workers)
	assert.False(t, cfg.Telegram.Enabled())
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())
	assert.False(t, cfg.IsProduction())
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := loadFromEnv(t, map[string]string{
		"FINANCE_API_URL":               "http://localhost:9000",
		"STORE_DRIVER":                  "memory",
		"AUTH_ENABLED":                  "true",
		"AUTH_SECRET":                   "open-sesame",
		"AUTH_MAX_ATTEMPTS":             "5",
		"AUTH_LOCKOUT_MINUTES":          "10",
		"SESSION_LIFETIME_MINUTES":      "5",
		"AUTH_SESSION_LIFETIME_MINUTES": "60",
		"SESSION_CLEANUP_INTERVAL":      "30s",
		"TELEGRAM_BOT_TOKEN":            "123:abc",
		"LOG_LEVEL":                     "debug",
		"ENVIRONMENT":                   "Production",
	})
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 5, cfg.Auth.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockoutWindow())
	assert.Equal(t, 5*time.Minute, cfg.Sessions.Lifetime())
	assert.Equal(t, time.Hour, cfg.Sessions.AuthLifetime())
	assert.Equal(t, 30*time.Second, cfg.Sessions.CleanupInterval)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, logger.DebugLevel, cfg.GetLogLevel())
	assert.True(t, cfg.IsProduction())
}

func TestMissingFinanceURL(t *testing.T) {
	_, err := loadFromEnv(t, map[string]string{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"FINANCE_API_URL": "https://wallet.example.com", "STORE_DRIVER": "memory"}
	}
	testCases := []struct {
		name  string
		extra map[string]string
		want  string
	}{
		{"auth without secret", map[string]string{"AUTH_ENABLED": "true"}, "auth secret is required"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis"}, "store driver must be"},
		{"negative attempts", map[string]string{"AUTH_MAX_ATTEMPTS": "-1"}, "max_attempts must be positive"},
		{"auth window shorter than session", map[string]string{"AUTH_SESSION_LIFETIME_MINUTES": "10", "SESSION_LIFETIME_MINUTES": "20"}, "auth_lifetime_minutes"},
		{"tiny cleanup interval", map[string]string{"SESSION_CLEANUP_INTERVAL": "10ms"}, "cleanup_interval"},
		{"bad finance url", map[string]string{"FINANCE_API_URL": "wallet.example.com"}, "finance base_url"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "log_level"},
		{"bad workers", map[string]string{"TELEGRAM_WORKERS": "-2"}, "telegram workers"},
		{"postgres needs a database", map[string]string{"STORE_DRIVER": "postgres", "DB_MAX_CONNECTIONS": "-1"}, "max_connections"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			vars := base()
			for k, v := range tc.extra {
				vars[k] = v
			}
			_, err := loadFromEnv(t, vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := loadFromEnv(t, map[string]string{
		"FINANCE_API_URL":     "https://wallet.example.com",
		"FINANCE_API_KEY":     "key-123",
		"TELEGRAM_BOT_TOKEN":  "123:abc",
		"AUTH_SECRET":         "open-sesame",
		"DATABASE_URL":        "postgres://u:p@db/wallet",
		"FINANCE_SIGNING_KEY": "",
	})
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	for _, secret := range []string{"key-123", "123:abc", "open-sesame", "u:p@db"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, "https://wallet.example.com")
	assert.Contains(t, out, masked)

	assert.Equal(t, "open-sesame", cfg.Auth.Secret, "the original is untouched")
	assert.Empty(t, cfg.Redacted().Finance.SigningKey)
}

package config

import "fmt"

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN" yaml:"bot_token"`
	Debug    bool   `env:"TELEGRAM_DEBUG" yaml:"debug"`
	// Workers bounds how many chats are handled concurrently.
	Workers int `env:"TELEGRAM_WORKERS" yaml:"workers" default:"4"`
}

// Enabled returns true if Telegram is configured with a bot token
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

// Validate checks the worker count.
func (c TelegramConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("telegram workers must be positive, got %d", c.Workers)
	}
	return nil
}

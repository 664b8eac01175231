package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/wallet_chatbot/internal/config"
	"github.com/lewisedginton/wallet_chatbot/pkg/config"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata["logger"].(logger.Logger); ok {
			return log
		}
	}

	// Fallback to default logger if not found
	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: "wallet-bot",
	})
}

// loadConfig reads the application configuration from the --config-file
// YAML, if given, and the environment.
func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	cfg := &appconfig.AppConfig{}
	if err := config.GetConfig(cfg, ctx.String("config-file"), false); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// serviceLogger builds the logger the configuration asks for. An explicit
// --log-level wins over the configured level.
func serviceLogger(ctx *cli.Context, cfg *appconfig.AppConfig) logger.Logger {
	level := cfg.GetLogLevel()
	if ctx.IsSet("log-level") {
		level = logger.ParseLevel(ctx.String("log-level"))
	}
	return logger.NewLogger(logger.Config{
		Level:   level,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})
}

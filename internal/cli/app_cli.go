package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// NewApp builds the wallet-bot command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "wallet-bot",
		Usage:   "Telegram bot for linking e-wallets and moving money",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  "json",
				Service: "wallet-bot",
			})
			ctx.App.Metadata = map[string]interface{}{
				"logger": log,
			}
			return nil
		},
		Commands: []*cli.Command{
			ConfigCommand(),
			MigrateCommand(),
			SessionsCommand(),
			BotCommand(),
		},
	}
}

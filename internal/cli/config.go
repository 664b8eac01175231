package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate configuration",
				Action: configValidateAction,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: configShowAction,
			},
		},
	}
}

func configValidateAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	log.Info("Validating configuration")

	if _, err := loadConfig(ctx); err != nil {
		log.Error("Configuration validation failed", logger.ErrorField(err))
		return err
	}

	log.Info("Configuration validation passed")
	fmt.Fprintln(ctx.App.Writer, "Configuration is valid")
	return nil
}

func configShowAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	fmt.Fprint(ctx.App.Writer, out)
	return nil
}

package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// MigrateCommand returns a command for schema migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Session store schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: func(ctx *cli.Context) error { return migrateAction(ctx, false) },
			},
			{
				Name:   "down",
				Usage:  "Roll back every migration",
				Action: func(ctx *cli.Context) error { return migrateAction(ctx, true) },
			},
		},
	}
}

func migrateAction(ctx *cli.Context, down bool) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := serviceLogger(ctx, cfg)

	store, err := openStore(ctx.Context, cfg, clock.Real{}, log)
	if err != nil {
		log.Error("Failed to open session store", logger.ErrorField(err))
		return err
	}
	defer store.Close()

	if err := store.migrate(log, down); err != nil {
		log.Error("Migration failed", logger.ErrorField(err))
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

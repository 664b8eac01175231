package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/wallet_chatbot/internal/cleanup"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// SessionsCommand returns a command for session maintenance
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Session maintenance",
		Subcommands: []*cli.Command{
			{
				Name:   "sweep",
				Usage:  "Delete expired sessions once",
				Action: sessionsSweepAction,
			},
		},
	}
}

func sessionsSweepAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := serviceLogger(ctx, cfg)
	clk := clock.Real{}

	store, err := openStore(ctx.Context, cfg, clk, log)
	if err != nil {
		log.Error("Failed to open session store", logger.ErrorField(err))
		return err
	}
	defer store.Close()

	sessions, err := newSessionManager(cfg, store.Store, clk, log)
	if err != nil {
		return err
	}
	sweeper, err := cleanup.NewSweeper(cleanup.Config{Sessions: sessions, Logger: log})
	if err != nil {
		return err
	}
	removed, err := sweeper.SweepOnce(ctx.Context)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Removed %d expired sessions\n", removed)
	return nil
}

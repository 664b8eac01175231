package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/wallet_chatbot/internal/connectors/telegram"
	"github.com/lewisedginton/wallet_chatbot/internal/ops"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
	"github.com/lewisedginton/wallet_chatbot/pkg/utils"
)

// BotCommand returns a command for bot operations
func BotCommand() *cli.Command {
	return &cli.Command{
		Name:    "bot",
		Aliases: []string{"b"},
		Usage:   "Wallet bot operations",
		Subcommands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Run the Telegram bot, the session sweeper and the ops server",
				Action: botStartAction,
			},
			{
				Name:   "health",
				Usage:  "Query the liveness probe of a running bot",
				Action: botHealthAction,
			},
		},
	}
}

func botStartAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		getLogger(ctx).Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}
	log := serviceLogger(ctx, cfg)
	cfg.LogConfig(log)

	if !cfg.Telegram.Enabled() {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required to start the bot")
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}
	m := metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnableBotMetrics)

	store, err := openStore(runCtx, cfg, clk, log)
	if err != nil {
		log.Error("Failed to open session store", logger.ErrorField(err))
		return err
	}
	defer store.Close()

	if cfg.Store.AutoMigrate {
		if err := store.migrate(log, false); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	connector, err := telegram.NewConnector(telegram.Config{
		BotToken: cfg.Telegram.BotToken,
		Debug:    cfg.Telegram.Debug,
		Workers:  cfg.Telegram.Workers,
		Logger:   log,
	})
	if err != nil {
		log.Error("Failed to create Telegram connector", logger.ErrorField(err))
		return fmt.Errorf("failed to create Telegram connector: %w", err)
	}
	if me, err := connector.GetBotInfo(runCtx); err == nil {
		log.Info("Connected to Telegram", logger.StringField("bot_username", me.Username))
	}

	app, err := wire(cfg, store.Store, connector, clk, m, log)
	if err != nil {
		log.Error("Failed to wire services", logger.ErrorField(err))
		return err
	}

	errChans := []chan error{
		utils.RunAsync(func() error { return connector.Start(runCtx, app.Handler) }),
		utils.RunAsync(func() error { return app.Sweeper.Run(runCtx) }),
	}

	gracefulCloser := func() {}
	if cfg.HTTP.Enabled() {
		server, err := ops.NewServer(ops.Config{
			HTTP:             cfg.HTTP,
			Logger:           log,
			Metrics:          m,
			Sessions:         app.Sessions,
			FinanceHealthURL: cfg.Finance.HealthURL(),
		})
		if err != nil {
			stop()
			return fmt.Errorf("failed to create ops server: %w", err)
		}
		var opsErr chan error
		opsErr, _, gracefulCloser, err = server.Listen()
		if err != nil {
			stop()
			return fmt.Errorf("failed to start ops server: %w", err)
		}
		errChans = append(errChans, opsErr)
	}

	log.Info("Wallet bot is running")

	merged := utils.MergeErrorChans(errChans...)
	var runErr error
	select {
	case <-runCtx.Done():
		log.Info("Received shutdown signal")
	case err, ok := <-merged:
		if ok && err != nil {
			log.Error("Fatal component error occurred", logger.ErrorField(err))
			runErr = err
		}
	}

	stop()
	gracefulCloser()
	for err := range merged {
		log.Warn("Component error during shutdown", logger.ErrorField(err))
	}
	log.Info("Wallet bot stopped")
	return runErr
}

func botHealthAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := serviceLogger(ctx, cfg)
	if !cfg.HTTP.Enabled() {
		return fmt.Errorf("the ops server is disabled")
	}

	reqCtx, cancel := context.WithTimeout(ctx.Context, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fmt.Sprintf("http://localhost:%d/health/live", cfg.HTTP.Port), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Error("Health check failed", logger.ErrorField(err))
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error("Health check failed with status", logger.HTTPStatusField(resp.StatusCode))
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	fmt.Fprintln(ctx.App.Writer, "Health check passed")
	return nil
}

package cli

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/chatbot"
	"github.com/lewisedginton/wallet_chatbot/internal/cleanup"
	appconfig "github.com/lewisedginton/wallet_chatbot/internal/config"
	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
)

// transport is what the bot needs from a chat connector.
type transport interface {
	chatbot.Messenger
	flows.MediaFetcher
}

// components are the wired domain services.
type components struct {
	Sessions *session.Manager
	Auth     *auth.Engine
	Flows    *flows.Engine
	Handler  *chatbot.Handler
	Sweeper  *cleanup.Sweeper
}

// newSessionManager builds the manager every command shares.
func newSessionManager(cfg *appconfig.AppConfig, store session.Store, clk clock.Clock, log logger.Logger) (*session.Manager, error) {
	return session.NewManager(session.Config{
		Store:    store,
		Clock:    clk,
		Logger:   log,
		Lifetime: cfg.Sessions.Lifetime(),
	})
}

// wire builds the domain services on top of an open store and a chat
// transport.
func wire(cfg *appconfig.AppConfig, store session.Store, tr transport, clk clock.Clock, m *metrics.Metrics, log logger.Logger) (*components, error) {
	sessions, err := newSessionManager(cfg, store, clk, log)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	secret := cfg.Auth.Secret
	if !cfg.Auth.Enabled && secret == "" {
		// The gate is off and /login refuses; the engine still needs a
		// secret nobody knows.
		secret = uuid.NewString()
	}
	authEngine, err := auth.NewEngine(auth.Config{
		Sessions:        sessions,
		Logger:          log,
		Metrics:         m,
		Secret:          secret,
		MaxAttempts:     cfg.Auth.MaxAttempts,
		LockoutWindow:   cfg.Auth.LockoutWindow(),
		SessionLifetime: cfg.Sessions.AuthLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("auth engine: %w", err)
	}

	financeClient, err := finance.NewHTTPClient(finance.HTTPConfig{
		BaseURL:    cfg.Finance.BaseURL,
		APIKey:     cfg.Finance.APIKey,
		SigningKey: cfg.Finance.SigningKey,
		Timeout:    cfg.Finance.Timeout,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("finance client: %w", err)
	}

	engine, err := flows.NewEngine(flows.Config{
		Sessions: sessions,
		Logger:   log,
		Metrics:  m,
		Flows: []flows.Flow{
			flows.NewLogin(authEngine),
			flows.NewOnboarding(financeClient),
			flows.NewTransfer(financeClient, tr),
			flows.NewRemoveWallet(financeClient),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("flow engine: %w", err)
	}

	handler, err := chatbot.NewHandler(chatbot.Config{
		Flows:       engine,
		Auth:        authEngine,
		Sessions:    sessions,
		Finance:     financeClient,
		Messenger:   tr,
		Logger:      log,
		Metrics:     m,
		AuthEnabled: cfg.Auth.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("chat handler: %w", err)
	}

	sweeper, err := cleanup.NewSweeper(cleanup.Config{
		Sessions: sessions,
		Logger:   log,
		Metrics:  m,
		Interval: cfg.Sessions.CleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	return &components{
		Sessions: sessions,
		Auth:     authEngine,
		Flows:    engine,
		Handler:  handler,
		Sweeper:  sweeper,
	}, nil
}

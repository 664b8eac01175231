package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/lewisedginton/wallet_chatbot/internal/config"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/internal/store/postgres"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// storeHandle is an opened session store and its teardown.
type storeHandle struct {
	Store session.Store
	pool  *pgxpool.Pool
	close func()
}

// Close releases the store's connections.
func (h *storeHandle) Close() {
	if h.close != nil {
		h.close()
	}
}

// openStore opens the configured session store. The memory driver loses
// every session on restart and suits local runs only.
func openStore(ctx context.Context, cfg *appconfig.AppConfig, clk clock.Clock, log logger.Logger) (*storeHandle, error) {
	switch cfg.Store.Driver {
	case appconfig.StoreMemory:
		log.Warn("Using the in-memory session store; sessions do not survive a restart")
		return &storeHandle{Store: memory.New(clk)}, nil
	case appconfig.StorePostgres:
		connString, err := cfg.Database.PoolConnectionString()
		if err != nil {
			return nil, err
		}
		pool, db, err := postgres.Open(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		log.Info("Connected to Postgres",
			logger.IntField("max_connections", cfg.Database.MaxConnections))
		return &storeHandle{
			Store: postgres.New(db, clk),
			pool:  pool,
			close: func() {
				_ = db.Close()
				pool.Close()
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// migrate applies or rolls back the schema. It is a no-op for the memory
// driver.
func (h *storeHandle) migrate(log logger.Logger, down bool) error {
	if h.pool == nil {
		log.Info("Memory store has no schema to migrate")
		return nil
	}
	m := postgres.NewMigrationManager(h.pool, log)
	defer func() { _ = m.Close() }()
	if down {
		return m.Down()
	}
	return m.Up()
}

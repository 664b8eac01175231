// Package cleanup removes expired sessions on a fixed interval.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = time.Minute

// Purger deletes every session that has expired.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Config holds configuration for the sweeper.
type Config struct {
	Sessions Purger
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration
}

// Sweeper periodically purges expired sessions. Expiry is already enforced
// on read, so a late or failed sweep only delays reclaiming storage.
type Sweeper struct {
	sessions Purger
	log      logger.Logger
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewSweeper creates a sweeper.
func NewSweeper(cfg Config) (*Sweeper, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sweeper{
		sessions: cfg.Sessions,
		log:      cfg.Logger.WithFields(logger.StringField("component", "cleanup")),
		metrics:  cfg.Metrics,
		interval: cfg.Interval,
	}, nil
}

// SweepOnce runs a single purge and reports how many sessions it removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.sessions.PurgeExpired(ctx)
	s.metrics.ObserveSweep(removed, err)
	if err != nil {
		s.log.Warn("Session sweep failed", logger.ErrorField(err))
		return 0, err
	}
	if removed > 0 {
		s.log.Info("Expired sessions removed", logger.Int64Field("removed", removed))
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Session sweeper started", logger.DurationField("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Session sweeper stopped")
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

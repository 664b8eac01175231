// Package auth implements the shared-secret password gate and its
// brute-force lockout. Attempts and lockout live in their own session kind
// so a lockout outlives the login session that triggered it.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
)

// Defaults applied when Config leaves a value unset.
const (
	DefaultMaxAttempts     = 3
	DefaultLockoutWindow   = 30 * time.Minute
	DefaultSessionLifetime = 24 * time.Hour
)

// Config holds configuration for the authentication engine.
type Config struct {
	Sessions        *session.Manager
	Logger          logger.Logger
	Metrics         *metrics.Metrics
	Secret          string
	MaxAttempts     int
	LockoutWindow   time.Duration
	SessionLifetime time.Duration
}

// Status is the result of IsBlocked.
type Status struct {
	Blocked          bool
	RemainingMinutes int
	AttemptsLeft     int
}

// attempts is the payload of an auth_attempts session.
type attempts struct {
	Attempts     int        `json:"attempts"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// grant is the payload of an authenticated session.
type grant struct {
	Authenticated   bool      `json:"authenticated"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// Engine answers authentication questions for a chat.
type Engine struct {
	sessions *session.Manager
	log      logger.Logger
	metrics  *metrics.Metrics
	secret   []byte
	hashed   bool

	maxAttempts int
	lockout     time.Duration
	lifetime    time.Duration
}

// NewEngine creates an authentication engine. A secret starting with a
// bcrypt prefix is verified as a bcrypt hash, anything else as plain text.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = DefaultLockoutWindow
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = DefaultSessionLifetime
	}
	return &Engine{
		sessions:    cfg.Sessions,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		secret:      []byte(cfg.Secret),
		hashed:      isBcryptHash(cfg.Secret),
		maxAttempts: cfg.MaxAttempts,
		lockout:     cfg.LockoutWindow,
		lifetime:    cfg.SessionLifetime,
	}, nil
}

// MaxAttempts returns the configured attempt threshold.
func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// IsAuthenticated reports whether chatID holds a live authenticated session.
func (e *Engine) IsAuthenticated(ctx context.Context, chatID string) (bool, error) {
	s, err := e.sessions.GetSessionByKind(ctx, chatID, session.KindAuthenticated)
	if err != nil || s == nil {
		return false, err
	}
	var g grant
	if err := s.Data.Decode(&g); err != nil {
		return false, err
	}
	return g.Authenticated, nil
}

// IsBlocked reports the lockout state of chatID. A lockout that has run
// out is cleared as a side effect.
func (e *Engine) IsBlocked(ctx context.Context, chatID string) (Status, error) {
	s, a, err := e.loadAttempts(ctx, chatID)
	if err != nil {
		return Status{}, err
	}
	if s == nil {
		return Status{AttemptsLeft: e.maxAttempts}, nil
	}

	if a.Attempts >= e.maxAttempts && a.BlockedUntil != nil {
		now := e.sessions.Clock().Now()
		if a.BlockedUntil.After(now) {
			return Status{Blocked: true, RemainingMinutes: remainingMinutes(*a.BlockedUntil, now)}, nil
		}
		if _, err := e.sessions.DeleteSession(ctx, s.ID); err != nil {
			return Status{}, err
		}
		e.log.Info("Lockout expired", logger.ChatField(chatID))
		return Status{AttemptsLeft: e.maxAttempts}, nil
	}

	left := e.maxAttempts - a.Attempts
	if left < 0 {
		left = 0
	}
	return Status{AttemptsLeft: left}, nil
}

// Authenticate checks password against the shared secret. It returns nil on
// success, *LockoutError while the chat is locked out and *FailureError on a
// wrong password. Any other error is a persistence failure.
func (e *Engine) Authenticate(ctx context.Context, chatID, password string) error {
	status, err := e.IsBlocked(ctx, chatID)
	if err != nil {
		return err
	}
	if status.Blocked {
		e.metrics.IncAuthOutcome(metrics.OutcomeLocked)
		return &LockoutError{RemainingMinutes: status.RemainingMinutes}
	}

	if !e.matches(password) {
		return e.recordFailure(ctx, chatID)
	}

	if _, err := e.sessions.DeleteSessionsByKind(ctx, chatID, session.KindAuthAttempts); err != nil {
		return err
	}
	if _, err := e.sessions.DeleteSessionsByKind(ctx, chatID, session.KindAuthenticated); err != nil {
		return err
	}

	now := e.sessions.Clock().Now()
	s, err := e.sessions.CreateSession(ctx, chatID, session.KindAuthenticated,
		session.MustEncode(grant{Authenticated: true, AuthenticatedAt: now}))
	if err != nil {
		return err
	}
	if _, err := e.sessions.ExtendSession(ctx, s.ID, e.lifetime); err != nil {
		return err
	}

	e.metrics.IncAuthOutcome(metrics.OutcomeSuccess)
	e.log.Info("Chat authenticated", logger.ChatField(chatID), logger.SessionField(s.ID))
	return nil
}

// Logout removes the authenticated session and reports whether there was one.
func (e *Engine) Logout(ctx context.Context, chatID string) (bool, error) {
	removed, err := e.sessions.DeleteSessionsByKind(ctx, chatID, session.KindAuthenticated)
	if err != nil {
		return false, err
	}
	if removed {
		e.log.Info("Chat logged out", logger.ChatField(chatID))
	}
	return removed, nil
}

func (e *Engine) recordFailure(ctx context.Context, chatID string) error {
	s, a, err := e.loadAttempts(ctx, chatID)
	if err != nil {
		return err
	}
	a.Attempts++

	now := e.sessions.Clock().Now()
	locked := a.Attempts >= e.maxAttempts
	if locked {
		until := now.Add(e.lockout)
		a.BlockedUntil = &until
	}

	patch := session.MustEncode(a)
	if s == nil {
		s, err = e.sessions.CreateSession(ctx, chatID, session.KindAuthAttempts, patch)
	} else {
		s, err = e.sessions.UpdateSession(ctx, s.ID, session.Update{Data: patch})
	}
	if err != nil {
		return err
	}

	if locked {
		if _, err := e.sessions.ExtendSession(ctx, s.ID, e.lockout); err != nil {
			return err
		}
		e.metrics.IncAuthOutcome(metrics.OutcomeLocked)
		e.log.Warn("Chat locked out after repeated failures",
			logger.ChatField(chatID),
			logger.IntField("attempts", a.Attempts))
		return &LockoutError{RemainingMinutes: remainingMinutes(*a.BlockedUntil, now)}
	}

	e.metrics.IncAuthOutcome(metrics.OutcomeFailure)
	e.log.Info("Authentication failed",
		logger.ChatField(chatID),
		logger.IntField("attempts", a.Attempts))
	return &FailureError{AttemptsLeft: e.maxAttempts - a.Attempts}
}

func (e *Engine) loadAttempts(ctx context.Context, chatID string) (*session.Session, attempts, error) {
	var a attempts
	s, err := e.sessions.GetSessionByKind(ctx, chatID, session.KindAuthAttempts)
	if err != nil || s == nil {
		return nil, a, err
	}
	if err := s.Data.Decode(&a); err != nil {
		return nil, a, err
	}
	return s, a, nil
}

func (e *Engine) matches(password string) bool {
	if e.hashed {
		return bcrypt.CompareHashAndPassword(e.secret, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(e.secret, []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func remainingMinutes(until, now time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}

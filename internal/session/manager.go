package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/prefixed_uuid"
)

// DefaultLifetime is the window given to every new session.
const DefaultLifetime = 15 * time.Minute

// Config holds configuration for the session manager
type Config struct {
	Store    Store
	Clock    clock.Clock
	Logger   logger.Logger
	Lifetime time.Duration // Defaults to DefaultLifetime
}

// Manager is the typed facade over a Store that flow code calls.
type Manager struct {
	store    Store
	clock    clock.Clock
	log      logger.Logger
	lifetime time.Duration
}

// NewManager creates a new session manager instance
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	return &Manager{
		store:    cfg.Store,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		lifetime: cfg.Lifetime,
	}, nil
}

// Clock returns the manager's time source.
func (m *Manager) Clock() clock.Clock {
	return m.clock
}

// CreateSession stores a fresh session with an empty state. It does not
// remove other sessions of the same kind.
func (m *Manager) CreateSession(ctx context.Context, chatID string, kind Kind, initial Data) (*Session, error) {
	now := m.clock.Now()
	if initial == nil {
		initial = Data{}
	}
	s := &Session{
		ID:        prefixed_uuid.New("session").String(),
		ChatID:    chatID,
		Kind:      kind,
		State:     "",
		Data:      initial.Clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
	}

	if err := m.store.Insert(ctx, s); err != nil {
		m.log.Error("Failed to create session",
			logger.ChatField(chatID),
			logger.KindField(string(kind)),
			logger.ErrorField(err))
		return nil, fmt.Errorf("create %s session: %w", kind, err)
	}

	m.log.Debug("Created session",
		logger.ChatField(chatID),
		logger.SessionField(s.ID),
		logger.KindField(string(kind)))

	return s, nil
}

// GetActiveSession returns the newest unexpired session for chatID whose
// kind is not in exclude, or nil when there is none.
func (m *Manager) GetActiveSession(ctx context.Context, chatID string, exclude ...Kind) (*Session, error) {
	return m.find(ctx, chatID, KindFilter{Exclude: exclude})
}

// GetFlowSession is GetActiveSession with authentication bookkeeping kinds
// excluded, i.e. the session a free-text reply belongs to.
func (m *Manager) GetFlowSession(ctx context.Context, chatID string) (*Session, error) {
	return m.GetActiveSession(ctx, chatID, BookkeepingKinds...)
}

// GetSessionByKind returns the newest unexpired session of kind, or nil.
func (m *Manager) GetSessionByKind(ctx context.Context, chatID string, kind Kind) (*Session, error) {
	return m.find(ctx, chatID, KindFilter{Include: []Kind{kind}})
}

func (m *Manager) find(ctx context.Context, chatID string, filter KindFilter) (*Session, error) {
	s, err := m.store.FindMostRecentActive(ctx, chatID, filter)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		m.log.Error("Failed to look up session", logger.ChatField(chatID), logger.ErrorField(err))
		return nil, fmt.Errorf("find session: %w", err)
	}
	return s, nil
}

// UpdateSession merges upd into the session. It fails with
// ErrSessionNotFound once the session is deleted or expired.
func (m *Manager) UpdateSession(ctx context.Context, id string, upd Update) (*Session, error) {
	s, err := m.store.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			m.log.Debug("Update targeted a missing session", logger.SessionField(id))
		} else {
			m.log.Error("Failed to update session", logger.SessionField(id), logger.ErrorField(err))
		}
		return nil, fmt.Errorf("update session: %w", err)
	}
	return s, nil
}

// DeleteSession removes one session and reports whether it existed.
func (m *Manager) DeleteSession(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.Delete(ctx, id)
	if err != nil {
		m.log.Error("Failed to delete session", logger.SessionField(id), logger.ErrorField(err))
		return false, fmt.Errorf("delete session: %w", err)
	}
	return removed, nil
}

// DeleteSessionsByKind removes every session of kind for chatID.
func (m *Manager) DeleteSessionsByKind(ctx context.Context, chatID string, kind Kind) (bool, error) {
	removed, err := m.store.DeleteByChatAndKind(ctx, chatID, kind)
	if err != nil {
		m.log.Error("Failed to delete sessions",
			logger.ChatField(chatID),
			logger.KindField(string(kind)),
			logger.ErrorField(err))
		return false, fmt.Errorf("delete %s sessions: %w", kind, err)
	}
	return removed, nil
}

// ExtendSession moves the session's expiry to now+d. It reports false when
// the session is gone.
func (m *Manager) ExtendSession(ctx context.Context, id string, d time.Duration) (bool, error) {
	ok, err := m.store.ExtendExpiry(ctx, id, d)
	if err != nil {
		m.log.Error("Failed to extend session", logger.SessionField(id), logger.ErrorField(err))
		return false, fmt.Errorf("extend session: %w", err)
	}
	return ok, nil
}

// PurgeExpired physically removes every session already past its expiry.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredBefore(ctx, m.clock.Now())
	if err != nil {
		m.log.Error("Failed to purge expired sessions", logger.ErrorField(err))
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Package memory is a process-local session.Store for development and tests.
// Records do not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
)

// Store keeps sessions in a map guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	clock    clock.Clock
}

var _ session.Store = (*Store)(nil)

// New creates an empty store reading time from c.
func New(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		sessions: make(map[string]*session.Session),
		clock:    c,
	}
}

func (s *Store) Insert(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return session.ErrDuplicateID
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) FindMostRecentActive(_ context.Context, chatID string, filter session.KindFilter) (*session.Session, error) {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *session.Session
	for _, sess := range s.sessions {
		if sess.ChatID != chatID || !sess.ActiveAt(now) || !filter.Matches(sess.Kind) {
			continue
		}
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, session.ErrSessionNotFound
	}
	return latest.Clone(), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) Update(_ context.Context, id string, upd session.Update) (*session.Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.ActiveAt(now) {
		return nil, session.ErrSessionNotFound
	}
	if upd.State != nil {
		sess.State = *upd.State
	}
	if len(upd.Data) > 0 {
		sess.Data = sess.Data.Merge(upd.Data.Clone())
	}
	return sess.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *Store) DeleteByChatAndKind(_ context.Context, chatID string, kind session.Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for id, sess := range s.sessions {
		if sess.ChatID == chatID && sess.Kind == kind {
			delete(s.sessions, id)
			removed = true
		}
	}
	return removed, nil
}

func (s *Store) ExtendExpiry(_ context.Context, id string, d time.Duration) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.ActiveAt(now) {
		return false, nil
	}
	sess.ExpiresAt = now.Add(d)
	return true, nil
}

func (s *Store) DeleteExpiredBefore(_ context.Context, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(ts) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of records held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

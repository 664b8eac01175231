package session

import (
	"context"
	"time"
)

// KindFilter restricts a lookup by kind. An empty filter matches everything;
// Include and Exclude may be combined.
type KindFilter struct {
	Include []Kind
	Exclude []Kind
}

// Matches reports whether k passes the filter.
func (f KindFilter) Matches(k Kind) bool {
	if len(f.Include) > 0 && !containsKind(f.Include, k) {
		return false
	}
	return !containsKind(f.Exclude, k)
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

// Store is the durable home of session records. Implementations read the
// current time from their own clock and must be safe for concurrent use.
type Store interface {
	// Insert stores a new record, failing with ErrDuplicateID on id collision.
	Insert(ctx context.Context, s *Session) error

	// FindMostRecentActive returns the newest unexpired record for chatID that
	// passes filter, or ErrSessionNotFound.
	FindMostRecentActive(ctx context.Context, chatID string, filter KindFilter) (*Session, error)

	// FindByID is an exact lookup that ignores expiry.
	FindByID(ctx context.Context, id string) (*Session, error)

	// Update merges upd into the unexpired record id and returns the result,
	// or ErrSessionNotFound.
	Update(ctx context.Context, id string, upd Update) (*Session, error)

	// Delete removes id and reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteByChatAndKind removes every record of kind for chatID.
	DeleteByChatAndKind(ctx context.Context, chatID string, kind Kind) (bool, error)

	// ExtendExpiry sets expires_at to now+d on an unexpired record. It
	// reports false when no such record exists.
	ExtendExpiry(ctx context.Context, id string, d time.Duration) (bool, error)

	// DeleteExpiredBefore removes every record whose expires_at < ts.
	DeleteExpiredBefore(ctx context.Context, ts time.Time) (int64, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

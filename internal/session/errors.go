package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a targeted session no longer exists
	// or has expired. Callers should ask the user to restart the flow.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("duplicate session id")
)

// StoreError wraps a failure of the backing store. It is never used for
// not-found or duplicate conditions.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

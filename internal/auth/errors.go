package auth

import (
	"errors"
	"fmt"
)

// ErrNoSecret is returned when authentication is attempted without a
// configured secret.
var ErrNoSecret = errors.New("authentication secret not configured")

// FailureError reports a rejected password. It never says why the password
// was wrong.
type FailureError struct {
	AttemptsLeft int
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("authentication failed, %d attempts left", e.AttemptsLeft)
}

// LockoutError reports that the chat is locked out of authentication.
type LockoutError struct {
	RemainingMinutes int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("authentication locked for %d more minutes", e.RemainingMinutes)
}

// IsFailure reports whether err is a wrong-password failure.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}

// IsLockout reports whether err is an active lockout.
func IsLockout(err error) bool {
	var le *LockoutError
	return errors.As(err, &le)
}

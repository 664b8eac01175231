package flows

import (
	"errors"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

var (
	// ErrActiveSessionConflict is returned when a flow is started while
	// another flow session is active for the chat.
	ErrActiveSessionConflict = errors.New("another session is active")

	// ErrNoActiveSession is returned when a reply arrives with no flow in
	// progress.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSelectionExpired is returned for a keyboard token the session no
	// longer knows.
	ErrSelectionExpired = errors.New("selection expired")

	// ErrUnknownFlow is returned for a session kind with no registered flow.
	ErrUnknownFlow = errors.New("unknown flow")
)

// ConflictError names the flow that blocked a start.
type ConflictError struct {
	Active session.Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s in progress", ErrActiveSessionConflict, e.Active)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrActiveSessionConflict
}

// StepError is the cause of a terminal flow failure.
type StepError struct {
	Op  string
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedError reports a flow that ended on a terminal failure. The session
// has already been deleted when it is returned.
type FailedError struct {
	Kind session.Kind
	Err  error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s flow failed: %v", e.Kind, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// ValidationError describes malformed user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

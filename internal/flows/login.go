package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// StateAwaitingPassword is the only login state.
const StateAwaitingPassword = "awaiting_password"

// Authenticator checks a password for a chat.
type Authenticator interface {
	Authenticate(ctx context.Context, chatID, password string) error
}

// Login asks for the shared password. A wrong password keeps the session
// open for another try until the lockout starts.
type Login struct {
	machine
	auth Authenticator
}

// NewLogin creates the login flow.
func NewLogin(a Authenticator) *Login {
	f := &Login{auth: a}
	f.machine = machine{
		kind:  session.KindLogin,
		start: f.start,
		steps: map[string]stepFunc{
			StateAwaitingPassword: f.password,
		},
	}
	return f
}

func (f *Login) start(_ context.Context, _ *StepContext) (Outcome, error) {
	return advanceTo(StateAwaitingPassword, nil, Reply{
		Text: "Send the password. The message will be deleted after it is read.",
	}), nil
}

func (f *Login) password(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	if in.Text == "" {
		return reprompt("Send the password as a text message."), nil
	}

	err := f.auth.Authenticate(ctx, sc.ChatID, in.Text)
	var failure *auth.FailureError
	switch {
	case err == nil:
		return complete("You are logged in. Send /help to see what I can do.").redacted(), nil
	case errors.As(err, &failure):
		return reprompt(fmt.Sprintf("Wrong password. %d attempts left.", failure.AttemptsLeft)).redacted(), nil
	case auth.IsLockout(err):
		return fail("authenticate", err).redacted(), nil
	default:
		return Outcome{Redact: true}, err
	}
}

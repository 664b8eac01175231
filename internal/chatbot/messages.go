package chatbot

import (
	"errors"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

const (
	msgGeneric        = "Something went wrong. Please try again."
	msgLoginRequired  = "Please /login first."
	msgUnknownCommand = "Unknown command. Send /help to see what I can do."
	msgNothingActive  = "There is nothing in progress. Send /help to see what I can do."
	msgExpired        = "That button has expired. Use the latest message or start again."
	msgSessionEnded   = "That conversation has ended. Start again with a command."
	msgPersistence    = "I could not save your progress. Please try again in a moment."
)

var errLoginRequired = errors.New("login required")

var flowNames = map[session.Kind]string{
	session.KindLogin:        "login",
	session.KindAddWallet:    "wallet registration",
	session.KindTransfer:     "transfer",
	session.KindRemoveWallet: "wallet removal",
}

func flowName(k session.Kind) string {
	if n, ok := flowNames[k]; ok {
		return n
	}
	return string(k)
}

// describe maps an error to the single message shown to the user.
func describe(err error) string {
	var (
		conflict *flows.ConflictError
		failed   *flows.FailedError
		lockout  *auth.LockoutError
		apiErr   *finance.APIError
	)
	switch {
	case errors.Is(err, errLoginRequired):
		return msgLoginRequired
	case errors.As(err, &conflict):
		return fmt.Sprintf("You already have a %s in progress. Finish it or send /cancel.", flowName(conflict.Active))
	case errors.Is(err, flows.ErrNoActiveSession):
		return msgNothingActive
	case errors.Is(err, flows.ErrSelectionExpired):
		return msgExpired
	case errors.Is(err, session.ErrSessionNotFound):
		return msgSessionEnded
	case errors.As(err, &lockout):
		return lockoutMessage(lockout.RemainingMinutes)
	case errors.As(err, &failed):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return fmt.Sprintf("The %s was cancelled: %s", flowName(failed.Kind), apiErr.Message)
		}
		return fmt.Sprintf("The %s could not be completed. Please try again later.", flowName(failed.Kind))
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return "The wallet service returned an error: " + apiErr.Message
		}
		return "The wallet service is unavailable. Please try again later."
	case session.IsStoreError(err):
		return msgPersistence
	default:
		return msgGeneric
	}
}

func lockoutMessage(minutes int) string {
	return fmt.Sprintf("Too many wrong passwords. Try again in %d minutes.", minutes)
}

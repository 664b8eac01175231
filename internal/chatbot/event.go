// Package chatbot turns chat events into commands and flow steps and is
// the one place where errors become user-visible messages.
package chatbot

import (
	"context"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/flows"
)

// Event is one inbound update from the chat transport.
type Event struct {
	ChatID    string
	MessageID int
	Text      string
	Media     *flows.Media

	// CallbackID and CallbackData are set when a keyboard button was pressed.
	CallbackID   string
	CallbackData string
}

// Messenger sends messages back to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID string, reply flows.Reply) (int, error)
	ClearKeyboard(ctx context.Context, chatID string, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
}

// Type classifies the event for metrics and logging.
func (e Event) Type() string {
	switch {
	case e.CallbackID != "":
		return "callback"
	case e.Media != nil:
		return "photo"
	case isCommand(e.Text):
		return "command"
	default:
		return "message"
	}
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// parseCommand splits "/cmd@bot arg1 arg2" into "/cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return name, fields[1:]
}

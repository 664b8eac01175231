package flows

import (
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// Button is one inline keyboard entry. Data is the opaque callback token.
type Button struct {
	Label string
	Data  string
}

// Reply is a user-facing message with an optional inline keyboard.
type Reply struct {
	Text     string
	Keyboard [][]Button
}

// Selection is the typed payload behind a keyboard token.
type Selection struct {
	Action string `json:"action"`
	Value  string `json:"value"`
	Label  string `json:"label,omitempty"`
}

// Media references an inbound attachment held by the chat transport.
type Media struct {
	Ref      string
	MimeType string
}

// Input is one inbound reply routed to the active flow. Exactly one of
// Text, Selection or Media is meaningful.
type Input struct {
	Text      string
	Selection *Selection
	Media     *Media
}

// OutcomeKind distinguishes the four results of a step.
type OutcomeKind int

const (
	// Advance moves to a new state after merging Patch.
	Advance OutcomeKind = iota
	// Reprompt keeps the state; an optional Patch is still merged.
	Reprompt
	// Complete ends the flow successfully and deletes the session.
	Complete
	// Fail ends the flow on an external failure and deletes the session.
	Fail
)

func (k OutcomeKind) String() string {
	switch k {
	case Advance:
		return "advance"
	case Reprompt:
		return "reprompt"
	case Complete:
		return "complete"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Outcome is what a step handler decided. Validation problems are a
// Reprompt, never an error.
type Outcome struct {
	Kind  OutcomeKind
	State string
	Patch session.Data
	Reply Reply
	Err   error

	// Redact asks the transport to delete the user's message, used for
	// secrets such as PINs and passwords.
	Redact bool
}

func advanceTo(state string, patch session.Data, reply Reply) Outcome {
	return Outcome{Kind: Advance, State: state, Patch: patch, Reply: reply}
}

func reprompt(text string) Outcome {
	return Outcome{Kind: Reprompt, Reply: Reply{Text: text}}
}

func complete(text string) Outcome {
	return Outcome{Kind: Complete, Reply: Reply{Text: text}}
}

func fail(op string, err error) Outcome {
	return Outcome{Kind: Fail, Err: &StepError{Op: op, Err: err}}
}

func (o Outcome) redacted() Outcome {
	o.Redact = true
	return o
}

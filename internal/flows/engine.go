// Package flows is the conversation state machine: it starts flows,
// routes replies to the step for the session's state and applies each
// step's outcome to the session store.
package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
	"github.com/lewisedginton/wallet_chatbot/pkg/prefixed_uuid"
)

const (
	// SelectionPrefix starts every keyboard token.
	SelectionPrefix = "sel"

	choicesKey = "choices"
)

// Flow drives the sessions of one kind.
type Flow interface {
	Kind() session.Kind
	Start(ctx context.Context, sc *StepContext) (Outcome, error)
	Step(ctx context.Context, sc *StepContext, in Input) (Outcome, error)
}

// StepContext is what a step sees of the conversation.
type StepContext struct {
	ChatID  string
	Args    []string
	Session *session.Session

	known   map[string]Selection
	offered map[string]Selection
}

// Decode reads the session payload into v.
func (sc *StepContext) Decode(v any) error {
	return sc.Session.Data.Decode(v)
}

// Choice creates a keyboard button whose token resolves to sel on the
// next reply.
func (sc *StepContext) Choice(label string, sel Selection) Button {
	if sc.offered == nil {
		sc.offered = make(map[string]Selection)
	}
	sel.Label = label
	token := prefixed_uuid.New(SelectionPrefix).Compact()
	sc.offered[token] = sel
	return Button{Label: label, Data: token}
}

// IsSelectionToken reports whether callback data is a keyboard token.
func IsSelectionToken(data string) bool {
	return prefixed_uuid.HasPrefix(data, SelectionPrefix)
}

// Result is what the caller shows the user.
type Result struct {
	Kind   session.Kind
	Reply  Reply
	Redact bool
	Done   bool
}

// Config holds configuration for the flow engine.
type Config struct {
	Sessions *session.Manager
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	Flows    []Flow
}

// Engine owns flow start, dispatch and cancel.
type Engine struct {
	sessions *session.Manager
	log      logger.Logger
	metrics  *metrics.Metrics
	flows    map[session.Kind]Flow
}

// NewEngine creates a flow engine with the given flows registered.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	e := &Engine{
		sessions: cfg.Sessions,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		flows:    make(map[session.Kind]Flow, len(cfg.Flows)),
	}
	for _, f := range cfg.Flows {
		if _, dup := e.flows[f.Kind()]; dup {
			return nil, fmt.Errorf("flow %s registered twice", f.Kind())
		}
		e.flows[f.Kind()] = f
	}
	return e, nil
}

// Start opens a new session of kind and runs its first step. It refuses
// with ErrActiveSessionConflict while any flow session is active.
func (e *Engine) Start(ctx context.Context, chatID string, kind session.Kind, args []string) (Result, error) {
	flow, ok := e.flows[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFlow, kind)
	}

	active, err := e.sessions.GetFlowSession(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	if active != nil {
		return Result{Kind: active.Kind}, &ConflictError{Active: active.Kind}
	}

	s, err := e.sessions.CreateSession(ctx, chatID, kind, nil)
	if err != nil {
		return Result{}, err
	}

	sc := &StepContext{ChatID: chatID, Args: args, Session: s}
	ctx = finance.WithPrincipal(ctx, chatID)
	return e.apply(ctx, sc, func() (Outcome, error) {
		return flow.Start(ctx, sc)
	})
}

// Dispatch routes a reply to the step for the chat's active flow session.
func (e *Engine) Dispatch(ctx context.Context, chatID string, in Input, token string) (Result, error) {
	s, err := e.sessions.GetFlowSession(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	if s == nil {
		return Result{}, ErrNoActiveSession
	}
	flow, ok := e.flows[s.Kind]
	if !ok {
		return Result{Kind: s.Kind}, fmt.Errorf("%w: %s", ErrUnknownFlow, s.Kind)
	}

	sc := &StepContext{ChatID: chatID, Session: s}
	if token != "" {
		sel, ok := sc.lookup(token)
		if !ok {
			return Result{Kind: s.Kind}, ErrSelectionExpired
		}
		in.Selection = &sel
	}

	ctx = finance.WithPrincipal(ctx, chatID)
	return e.apply(ctx, sc, func() (Outcome, error) {
		return flow.Step(ctx, sc, in)
	})
}

// Cancel deletes the chat's active flow session and returns its kind.
func (e *Engine) Cancel(ctx context.Context, chatID string) (session.Kind, bool, error) {
	s, err := e.sessions.GetFlowSession(ctx, chatID)
	if err != nil || s == nil {
		return "", false, err
	}
	removed, err := e.sessions.DeleteSession(ctx, s.ID)
	if err != nil {
		return s.Kind, false, err
	}
	if removed {
		e.metrics.IncFlowOutcome(string(s.Kind), metrics.OutcomeCancelled)
		e.log.Info("Flow cancelled", logger.ChatField(chatID), logger.KindField(string(s.Kind)))
	}
	return s.Kind, removed, nil
}

// Active returns the chat's current flow session, or nil.
func (e *Engine) Active(ctx context.Context, chatID string) (*session.Session, error) {
	return e.sessions.GetFlowSession(ctx, chatID)
}

func (e *Engine) apply(ctx context.Context, sc *StepContext, step func() (Outcome, error)) (Result, error) {
	s := sc.Session
	log := e.log.WithFields(
		logger.ChatField(sc.ChatID),
		logger.SessionField(s.ID),
		logger.KindField(string(s.Kind)),
		logger.StateField(s.State),
	)

	out, err := step()
	if err != nil {
		e.metrics.IncFlowOutcome(string(s.Kind), metrics.OutcomeError)
		log.Error("Flow step failed", logger.ErrorField(err))
		return Result{Kind: s.Kind, Redact: out.Redact}, err
	}

	res := Result{Kind: s.Kind, Reply: out.Reply, Redact: out.Redact}
	e.metrics.IncFlowOutcome(string(s.Kind), out.Kind.String())

	switch out.Kind {
	case Advance:
		patch := out.Patch.Merge(session.Data{choicesKey: encodeChoices(sc.offered)})
		upd := session.Update{State: &out.State, Data: patch}
		if _, err := e.sessions.UpdateSession(ctx, s.ID, upd); err != nil {
			return e.discard(log, res, err)
		}
		log.Debug("Flow advanced", logger.StringField("next_state", out.State))

	case Reprompt:
		patch := out.Patch
		if len(sc.offered) > 0 {
			patch = patch.Merge(session.Data{choicesKey: encodeChoices(sc.offered)})
		}
		if len(patch) > 0 {
			if _, err := e.sessions.UpdateSession(ctx, s.ID, session.Update{Data: patch}); err != nil {
				return e.discard(log, res, err)
			}
		}

	case Complete:
		if _, err := e.sessions.DeleteSession(ctx, s.ID); err != nil {
			return res, err
		}
		res.Done = true
		log.Info("Flow completed")

	case Fail:
		if _, err := e.sessions.DeleteSession(ctx, s.ID); err != nil {
			return res, err
		}
		res.Done = true
		log.Warn("Flow ended on failure", logger.ErrorField(out.Err))
		return res, &FailedError{Kind: s.Kind, Err: out.Err}
	}
	return res, nil
}

// discard drops a step result whose session vanished while the step ran,
// which happens when the user cancels during an external call.
func (e *Engine) discard(log logger.Logger, res Result, err error) (Result, error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		log.Info("Session ended while the step ran, result discarded")
		return Result{Kind: res.Kind, Redact: res.Redact, Done: true}, err
	}
	return res, err
}

func (sc *StepContext) lookup(token string) (Selection, bool) {
	if sc.known == nil {
		sc.known = map[string]Selection{}
		if raw, ok := sc.Session.Data[choicesKey]; ok {
			_ = json.Unmarshal(raw, &sc.known)
		}
	}
	sel, ok := sc.known[token]
	return sel, ok
}

func encodeChoices(choices map[string]Selection) json.RawMessage {
	if choices == nil {
		choices = map[string]Selection{}
	}
	raw, _ := json.Marshal(choices)
	return raw
}

// selected returns the value of in when it is a selection for action, or
// when its text matches one of the aliases.
func selected(in Input, action string, aliases map[string]string) (string, bool) {
	if in.Selection != nil {
		if in.Selection.Action != action {
			return "", false
		}
		return in.Selection.Value, true
	}
	v, ok := aliases[strings.ToLower(strings.TrimSpace(in.Text))]
	return v, ok
}

package chatbot

import (
	"context"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
)

// Config holds configuration for the chat handler.
type Config struct {
	Flows       *flows.Engine
	Auth        *auth.Engine
	Sessions    *session.Manager
	Finance     finance.Client
	Messenger   Messenger
	Logger      logger.Logger
	Metrics     *metrics.Metrics
	AuthEnabled bool
}

// Handler routes events to commands and flows.
type Handler struct {
	flows       *flows.Engine
	auth        *auth.Engine
	sessions    *session.Manager
	finance     finance.Client
	messenger   Messenger
	log         logger.Logger
	metrics     *metrics.Metrics
	authEnabled bool
	commands    *CommandRegistry
}

// NewHandler creates a handler and registers the bot commands.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Flows == nil {
		return nil, fmt.Errorf("flow engine is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("auth engine is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Finance == nil {
		return nil, fmt.Errorf("finance client is required")
	}
	if cfg.Messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	h := &Handler{
		flows:       cfg.Flows,
		auth:        cfg.Auth,
		sessions:    cfg.Sessions,
		finance:     cfg.Finance,
		messenger:   cfg.Messenger,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		authEnabled: cfg.AuthEnabled,
	}
	h.setupCommands()
	return h, nil
}

// Commands lists the registered commands for the transport's menu.
func (h *Handler) Commands() []CommandInfo {
	return h.commands.List()
}

// Handle processes one event. Every error is turned into a reply here;
// the returned error only reports that the reply could not be sent.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	ctx, correlationID := logger.EnsureCorrelationID(ctx)
	log := h.log.WithFields(
		logger.CorrelationIDField(correlationID),
		logger.ChatField(ev.ChatID),
		logger.StringField("update_type", ev.Type()),
	)
	h.metrics.IncUpdate(ev.Type())

	if ev.CallbackID != "" {
		if err := h.messenger.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
			log.Warn("Failed to answer callback", logger.ErrorField(err))
		}
	}

	reply, redact, err := h.route(ctx, log, ev)
	if redact && ev.MessageID != 0 && ev.CallbackID == "" {
		if derr := h.messenger.DeleteMessage(ctx, ev.ChatID, ev.MessageID); derr != nil {
			log.Warn("Failed to delete sensitive message", logger.ErrorField(derr))
		}
	}
	if err != nil {
		log.Warn("Request ended with an error", logger.ErrorField(err))
		reply = flows.Reply{Text: describe(err)}
	}
	if reply.Text == "" {
		return nil
	}

	if _, err := h.messenger.Send(ctx, ev.ChatID, reply); err != nil {
		log.Error("Failed to send reply", logger.ErrorField(err))
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (h *Handler) route(ctx context.Context, log logger.Logger, ev Event) (flows.Reply, bool, error) {
	if ev.CallbackID != "" {
		if ev.MessageID != 0 {
			if err := h.messenger.ClearKeyboard(ctx, ev.ChatID, ev.MessageID); err != nil {
				log.Debug("Failed to clear keyboard", logger.ErrorField(err))
			}
		}
		if !flows.IsSelectionToken(ev.CallbackData) {
			return flows.Reply{}, false, flows.ErrSelectionExpired
		}
		return h.dispatch(ctx, ev, ev.CallbackData)
	}

	if isCommand(ev.Text) {
		name, args := parseCommand(ev.Text)
		cmd, ok := h.commands.Get(name)
		if !ok {
			return flows.Reply{Text: msgUnknownCommand}, false, nil
		}
		if !cmd.Public {
			if err := h.requireAuth(ctx, ev.ChatID); err != nil {
				return flows.Reply{}, false, err
			}
		}
		log.Info("Running command", logger.StringField("command", name))
		reply, err := cmd.Run(ctx, ev, args)
		return reply, false, err
	}

	return h.dispatch(ctx, ev, "")
}

func (h *Handler) dispatch(ctx context.Context, ev Event, token string) (flows.Reply, bool, error) {
	if h.authEnabled {
		active, err := h.flows.Active(ctx, ev.ChatID)
		if err != nil {
			return flows.Reply{}, false, err
		}
		if active == nil || active.Kind != session.KindLogin {
			if err := h.requireAuth(ctx, ev.ChatID); err != nil {
				return flows.Reply{}, false, err
			}
		}
	}

	res, err := h.flows.Dispatch(ctx, ev.ChatID, flows.Input{Text: ev.Text, Media: ev.Media}, token)
	return res.Reply, res.Redact, err
}

// requireAuth fails with errLoginRequired when the gate is on and the chat
// has no authenticated session.
func (h *Handler) requireAuth(ctx context.Context, chatID string) error {
	if !h.authEnabled {
		return nil
	}
	ok, err := h.auth.IsAuthenticated(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return errLoginRequired
	}
	return nil
}

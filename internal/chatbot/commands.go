package chatbot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// CommandFunc handles a specific bot command.
type CommandFunc func(ctx context.Context, ev Event, args []string) (flows.Reply, error)

// Command is a registered bot command. Public commands skip the login gate.
type Command struct {
	Name        string
	Description string
	Public      bool
	Run         CommandFunc
}

// CommandInfo describes a command for the transport's command menu.
type CommandInfo struct {
	Name        string
	Description string
}

// CommandRegistry manages bot command handlers
type CommandRegistry struct {
	commands map[string]Command
	order    []string
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(cmd Command) {
	if _, exists := r.commands[cmd.Name]; !exists {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// Get looks up a command by name, including the leading slash.
func (r *CommandRegistry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns the commands in registration order.
func (r *CommandRegistry) List() []CommandInfo {
	out := make([]CommandInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, CommandInfo{
			Name:        strings.TrimPrefix(name, "/"),
			Description: r.commands[name].Description,
		})
	}
	return out
}

func (h *Handler) setupCommands() {
	r := NewCommandRegistry()
	r.Register(Command{Name: "/start", Description: "Introduction", Public: true, Run: h.handleStart})
	r.Register(Command{Name: "/help", Description: "List the commands", Public: true, Run: h.handleHelp})
	r.Register(Command{Name: "/login", Description: "Log in with the password", Public: true, Run: h.handleLogin})
	r.Register(Command{Name: "/logout", Description: "Log out", Public: true, Run: h.handleLogout})
	r.Register(Command{Name: "/cancel", Description: "Cancel the current operation", Public: true, Run: h.handleCancel})
	r.Register(Command{Name: "/accounts", Description: "Show linked wallets", Run: h.handleAccounts})
	r.Register(Command{Name: "/addwallet", Description: "Link a new wallet", Run: h.startFlow(session.KindAddWallet)})
	r.Register(Command{Name: "/removewallet", Description: "Unlink a wallet", Run: h.startFlow(session.KindRemoveWallet)})
	r.Register(Command{Name: "/transfer", Description: "Bank transfer or QRIS payment", Run: h.startFlow(session.KindTransfer)})
	r.Register(Command{Name: "/history", Description: "Transaction history", Run: h.handleHistory})
	h.commands = r
}

func (h *Handler) handleStart(ctx context.Context, ev Event, args []string) (flows.Reply, error) {
	help, err := h.handleHelp(ctx, ev, args)
	if err != nil {
		return flows.Reply{}, err
	}
	help.Text = "Welcome! I can link your e-wallets, send bank transfers and pay QRIS codes.\n\n" + help.Text
	return help, nil
}

func (h *Handler) handleHelp(_ context.Context, _ Event, _ []string) (flows.Reply, error) {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range h.commands.List() {
		if c.Name == "login" && !h.authEnabled {
			continue
		}
		fmt.Fprintf(&b, "\n/%s - %s", c.Name, c.Description)
	}
	return flows.Reply{Text: b.String()}, nil
}

func (h *Handler) handleLogin(ctx context.Context, ev Event, _ []string) (flows.Reply, error) {
	if !h.authEnabled {
		return flows.Reply{Text: "Login is not required."}, nil
	}
	ok, err := h.auth.IsAuthenticated(ctx, ev.ChatID)
	if err != nil {
		return flows.Reply{}, err
	}
	if ok {
		return flows.Reply{Text: "You are already logged in."}, nil
	}
	status, err := h.auth.IsBlocked(ctx, ev.ChatID)
	if err != nil {
		return flows.Reply{}, err
	}
	if status.Blocked {
		return flows.Reply{Text: lockoutMessage(status.RemainingMinutes)}, nil
	}

	// A new /login replaces an unfinished one.
	if _, err := h.sessions.DeleteSessionsByKind(ctx, ev.ChatID, session.KindLogin); err != nil {
		return flows.Reply{}, err
	}
	res, err := h.flows.Start(ctx, ev.ChatID, session.KindLogin, nil)
	return res.Reply, err
}

func (h *Handler) handleLogout(ctx context.Context, ev Event, _ []string) (flows.Reply, error) {
	removed, err := h.auth.Logout(ctx, ev.ChatID)
	if err != nil {
		return flows.Reply{}, err
	}
	if !removed {
		return flows.Reply{Text: "You are not logged in."}, nil
	}
	return flows.Reply{Text: "You are logged out."}, nil
}

func (h *Handler) handleCancel(ctx context.Context, ev Event, _ []string) (flows.Reply, error) {
	kind, removed, err := h.flows.Cancel(ctx, ev.ChatID)
	if err != nil {
		return flows.Reply{}, err
	}
	if !removed {
		return flows.Reply{Text: "There is nothing to cancel."}, nil
	}
	return flows.Reply{Text: fmt.Sprintf("The %s was cancelled.", flowName(kind))}, nil
}

func (h *Handler) handleAccounts(ctx context.Context, ev Event, _ []string) (flows.Reply, error) {
	accounts, err := h.finance.ListAccounts(finance.WithPrincipal(ctx, ev.ChatID))
	if err != nil {
		return flows.Reply{}, err
	}
	if len(accounts) == 0 {
		return flows.Reply{Text: "You have no linked wallets. Use /addwallet to link one."}, nil
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Label() < accounts[j].Label()
	})
	var b strings.Builder
	b.WriteString("Your wallets:")
	for _, a := range accounts {
		fmt.Fprintf(&b, "\n%s: %s", a.Label(), flows.Rupiah(a.Balance))
	}
	return flows.Reply{Text: b.String()}, nil
}

func (h *Handler) startFlow(kind session.Kind) CommandFunc {
	return func(ctx context.Context, ev Event, args []string) (flows.Reply, error) {
		res, err := h.flows.Start(ctx, ev.ChatID, kind, args)
		return res.Reply, err
	}
}

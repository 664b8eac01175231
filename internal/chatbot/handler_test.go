package chatbot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(Config{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestHelpAndStart(t *testing.T) {
	h := newHarness(t, false)

	help := h.say("/help")
	assert.Contains(t, help, "/transfer - Bank transfer or QRIS payment")
	assert.Contains(t, help, "/history")
	assert.NotContains(t, help, "/login", "login is hidden when the gate is off")

	start := h.say("/start@wallet_bot")
	assert.Contains(t, start, "Welcome!")
	assert.Contains(t, start, "/addwallet")

	h = newHarness(t, true)
	assert.Contains(t, h.say("/help"), "/login - Log in with the password")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, false)
	assert.Equal(t, msgUnknownCommand, h.say("/teleport"))
}

func TestCommandsList(t *testing.T) {
	h := newHarness(t, false)
	cmds := h.handler.Commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, CommandInfo{Name: "start", Description: "Introduction"}, cmds[0])
}

func TestAuthGate(t *testing.T) {
	h := newHarness(t, true)

	assert.Equal(t, msgLoginRequired, h.say("/transfer"))
	assert.Equal(t, msgLoginRequired, h.say("50000"), "plain replies are gated too")
	assert.Contains(t, h.say("/help"), "Commands:")

	assert.Contains(t, h.say("/login"), "Send the password")
	h.nextMsgID = 41
	assert.Contains(t, h.say("wrong"), "2 attempts left")
	assert.Contains(t, h.messenger.deleted, 42, "password messages are deleted")

	assert.Contains(t, h.say(testPassword), "logged in")
	assert.Contains(t, h.messenger.deleted, 43)
	assert.Equal(t, "You are already logged in.", h.say("/login"))

	assert.Contains(t, h.say("/transfer"), "Paying from DANA - Utama")

	h.say("/cancel")
	assert.Equal(t, "You are logged out.", h.say("/logout"))
	assert.Equal(t, msgLoginRequired, h.say("/accounts"))
	assert.Equal(t, "You are not logged in.", h.say("/logout"))
}

func TestLoginDisabled(t *testing.T) {
	h := newHarness(t, false)
	assert.Equal(t, "Login is not required.", h.say("/login"))
	assert.Contains(t, h.say("/accounts"), "DANA - Utama")
}

func TestLoginLockout(t *testing.T) {
	h := newHarness(t, true)

	h.say("/login")
	h.say("nope")
	h.say("nope")
	assert.Equal(t, "Too many wrong passwords. Try again in 30 minutes.", h.say("nope"))

	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, "Too many wrong passwords. Try again in 20 minutes.", h.say("/login"))
	assert.Equal(t, msgLoginRequired, h.say(testPassword), "no login session is open")

	h.clock.Advance(20 * time.Minute)
	assert.Contains(t, h.say("/login"), "Send the password")
	assert.Contains(t, h.say(testPassword), "logged in")
}

func TestLoginSupersedesLeftoverLogin(t *testing.T) {
	h := newHarness(t, true)

	h.say("/login")
	first, err := h.sessions.GetSessionByKind(h.ctx, chatID, session.KindLogin)
	require.NoError(t, err)

	assert.Contains(t, h.say("/login"), "Send the password")
	second, err := h.sessions.GetSessionByKind(h.ctx, chatID, session.KindLogin)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLoginBlockedByOtherFlow(t *testing.T) {
	h := newHarness(t, true)
	h.login()
	h.say("/logout")

	_, err := h.sessions.CreateSession(h.ctx, chatID, session.KindTransfer, nil)
	require.NoError(t, err)
	assert.Equal(t, "You already have a transfer in progress. Finish it or send /cancel.", h.say("/login"))
}

func TestConflict(t *testing.T) {
	h := newHarness(t, false)

	assert.Contains(t, h.say("/addwallet"), "phone number")
	assert.Equal(t, "You already have a wallet registration in progress. Finish it or send /cancel.", h.say("/transfer"))
	assert.Contains(t, h.say("081234567890"), "PIN", "the running flow is untouched")
}

func TestNothingInProgress(t *testing.T) {
	h := newHarness(t, false)
	assert.Equal(t, msgNothingActive, h.say("hello"))
}

func TestCancel(t *testing.T) {
	h := newHarness(t, false)

	assert.Equal(t, "There is nothing to cancel.", h.say("/cancel"))
	h.say("/transfer")
	assert.Equal(t, "The transfer was cancelled.", h.say("/cancel"))
	assert.Equal(t, msgNothingActive, h.say("QRIS"))
}

func TestOnboardingRedactsSecrets(t *testing.T) {
	h := newHarness(t, false)

	h.say("/addwallet")
	h.say("081234567890")
	h.nextMsgID = 99
	assert.Contains(t, h.say("123456"), "Where should we send the OTP?")
	assert.Equal(t, []int{100}, h.messenger.deleted)

	assert.Contains(t, h.press("WhatsApp"), "We sent an OTP by WhatsApp")
	assert.NotEmpty(t, h.messenger.cleared)
	assert.Len(t, h.messenger.answered, 1)

	h.say("4321")
	assert.Equal(t, []int{100, 101}, h.messenger.deleted)
	assert.Contains(t, h.say("Dompet Kedua"), "Dompet Kedua")
}

func TestCallbacks(t *testing.T) {
	h := newHarness(t, false)

	h.say("/transfer")
	stale := h.messenger.last()
	assert.Contains(t, h.press("QRIS"), "How much do you want to pay?")

	token := stale.Reply.Keyboard[0][0].Data
	assert.Equal(t, msgExpired, h.callback(stale.ID, token))
	assert.Equal(t, msgExpired, h.callback(stale.ID, "something-else"))
	assert.Len(t, h.messenger.answered, 3, "every callback is answered")
}

func TestQRISPayment(t *testing.T) {
	h := newHarness(t, false)

	h.say("/transfer")
	h.press("QRIS")
	h.say("25.000")
	h.nextMsgID++
	require.NoError(t, h.handler.Handle(h.ctx, Event{ChatID: chatID, MessageID: h.nextMsgID, Media: mediaRef("photo-9")}))
	assert.Contains(t, h.messenger.last().Reply.Text, "Rp25.000")

	calls := h.finance.CallsTo("PayQRIS")
	require.Len(t, calls, 1)
	payment := calls[0].Arg.(finance.QRISPayment)
	assert.Equal(t, []byte("qr:photo-9"), payment.Image)
	assert.Equal(t, chatID, calls[0].Principal)
}

func TestExternalFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		command string
		want    string
	}{
		{
			name:    "accounts api message",
			err:     &finance.APIError{Op: "list accounts", Status: 503, Message: "maintenance"},
			command: "/accounts",
			want:    "The wallet service returned an error: maintenance",
		},
		{
			name:    "accounts transport failure",
			err:     &finance.APIError{Op: "list accounts", Err: errors.New("dial tcp: refused")},
			command: "/accounts",
			want:    "The wallet service is unavailable. Please try again later.",
		},
		{
			name:    "flow start api message",
			err:     &finance.APIError{Op: "list accounts", Status: 503, Message: "maintenance"},
			command: "/transfer",
			want:    "The transfer was cancelled: maintenance",
		},
		{
			name:    "flow start other failure",
			err:     errors.New("boom"),
			command: "/removewallet",
			want:    "The wallet removal could not be completed. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			h.finance.Errors["ListAccounts"] = tt.err
			assert.Equal(t, tt.want, h.say(tt.command))

			active, err := h.engine.Active(h.ctx, chatID)
			require.NoError(t, err)
			assert.Nil(t, active)
		})
	}
}

func TestCancelDuringExternalCall(t *testing.T) {
	h := newHarness(t, false)
	h.finance.Banks = []finance.Bank{{Code: "014", Name: "BCA"}, {Code: "008", Name: "Mandiri"}}

	h.say("/transfer")
	h.press("Bank transfer")
	h.say("50000")
	h.press("Search")
	h.say("BCA")

	h.finance.Hooks["InitBankTransfer"] = func() {
		require.NoError(t, h.handler.Handle(context.Background(), Event{ChatID: chatID, Text: "/cancel"}))
	}
	assert.Equal(t, msgSessionEnded, h.say("1234567890"))
	assert.Empty(t, h.finance.CallsTo("CompleteBankTransfer"))
	assert.Equal(t, msgNothingActive, h.say("KONFIRMASI"))
}

func TestAccounts(t *testing.T) {
	h := newHarness(t, false)
	h.finance.Accounts = append(h.finance.Accounts, finance.Account{ID: "acct-0", Provider: "DANA", Name: "Arisan", Balance: 5000})

	assert.Equal(t, "Your wallets:\nDANA - Arisan: Rp5.000\nDANA - Utama: Rp1.250.000", h.say("/accounts"))

	h.finance.Accounts = nil
	assert.Contains(t, h.say("/accounts"), "/addwallet")
	assert.Equal(t, chatID, h.finance.CallsTo("ListAccounts")[0].Principal)
}

type failingStore struct {
	*memory.Store
}

func (s failingStore) FindMostRecentActive(context.Context, string, session.KindFilter) (*session.Session, error) {
	return nil, &session.StoreError{Op: "find", Err: errors.New("connection refused")}
}

func TestStoreFailure(t *testing.T) {
	h := newHarnessWithStore(t, false, failingStore{Store: memory.New(nil)})

	assert.Equal(t, msgPersistence, h.say("/transfer"))
	assert.Equal(t, msgPersistence, h.say("hello"))
}

func TestSendFailure(t *testing.T) {
	h := newHarness(t, false)
	h.messenger.sendErr = errors.New("telegram down")

	err := h.handler.Handle(h.ctx, Event{ChatID: chatID, Text: "/help"})
	assert.Error(t, err)
}

func TestUpdateMetrics(t *testing.T) {
	h := newHarness(t, false)
	h.say("/transfer")
	h.press("QRIS")
	h.say("1000")

	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	assert.Contains(t, out, `wallet_bot_updates_total{type="command"} 1`)
	assert.Contains(t, out, `wallet_bot_updates_total{type="callback"} 1`)
	assert.Contains(t, out, `wallet_bot_updates_total{type="message"} 1`)
	assert.Contains(t, out, `wallet_bot_flow_steps_total{kind="transfer",outcome="advance"} 3`)
}

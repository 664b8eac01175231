package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/finance/financetest"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

const (
	chatID       = "5001"
	testPassword = "open-sesame" //nolint:gosec // Test constant, not a real credential.
)

type fakeMedia struct {
	data map[string][]byte
	err  error
}

func (m *fakeMedia) FetchMedia(_ context.Context, ref string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.data[ref]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	sessions *session.Manager
	finance  *financetest.Fake
	media    *fakeMedia
	clock    *clock.Fake
	last     Result
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	sessions, err := session.NewManager(session.Config{
		Store:  memory.New(clk),
		Clock:  clk,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	authEngine, err := auth.NewEngine(auth.Config{
		Sessions: sessions,
		Logger:   logger.Nop(),
		Secret:   testPassword,
	})
	require.NoError(t, err)

	fin := financetest.New()
	fin.Accounts = []finance.Account{{ID: "acct-1", Provider: "DANA", Name: "Utama", Phone: "81234567890"}}
	media := &fakeMedia{data: map[string][]byte{"photo-1": []byte("qr-bytes")}}

	engine, err := NewEngine(Config{
		Sessions: sessions,
		Logger:   logger.Nop(),
		Flows: []Flow{
			NewOnboarding(fin),
			NewTransfer(fin, media),
			NewLogin(authEngine),
			NewRemoveWallet(fin),
		},
	})
	require.NoError(t, err)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		engine:   engine,
		sessions: sessions,
		finance:  fin,
		media:    media,
		clock:    clk,
	}
}

func (h *harness) start(kind session.Kind) (Result, error) {
	res, err := h.engine.Start(h.ctx, chatID, kind, nil)
	h.last = res
	return res, err
}

func (h *harness) mustStart(kind session.Kind) Result {
	h.t.Helper()
	res, err := h.start(kind)
	require.NoError(h.t, err)
	return res
}

func (h *harness) send(text string) (Result, error) {
	res, err := h.engine.Dispatch(h.ctx, chatID, Input{Text: text}, "")
	h.last = res
	return res, err
}

func (h *harness) mustSend(text string) Result {
	h.t.Helper()
	res, err := h.send(text)
	require.NoError(h.t, err)
	return res
}

// press taps the button labelled label on the last reply's keyboard.
func (h *harness) press(label string) (Result, error) {
	h.t.Helper()
	token := ""
	for _, row := range h.last.Reply.Keyboard {
		for _, b := range row {
			if b.Label == label {
				token = b.Data
			}
		}
	}
	require.NotEmpty(h.t, token, "no button %q on the last reply", label)

	res, err := h.engine.Dispatch(h.ctx, chatID, Input{}, token)
	h.last = res
	return res, err
}

func (h *harness) mustPress(label string) Result {
	h.t.Helper()
	res, err := h.press(label)
	require.NoError(h.t, err)
	return res
}

func (h *harness) active() *session.Session {
	h.t.Helper()
	s, err := h.sessions.GetFlowSession(h.ctx, chatID)
	require.NoError(h.t, err)
	return s
}

func (h *harness) state() string {
	h.t.Helper()
	s := h.active()
	require.NotNil(h.t, s, "no active flow session")
	return s.State
}

func buttonLabels(r Result) []string {
	var out []string
	for _, row := range r.Reply.Keyboard {
		for _, b := range row {
			out = append(out, b.Label)
		}
	}
	return out
}

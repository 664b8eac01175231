package chatbot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/internal/auth"
	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/finance/financetest"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
)

const (
	chatID       = "777"
	testPassword = "open-sesame" //nolint:gosec // Test constant, not a real credential.
)

type sentMessage struct {
	ID     int
	ChatID string
	Reply  flows.Reply
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	deleted  []int
	cleared  []int
	answered []string
	sendErr  error
}

func (m *fakeMessenger) Send(_ context.Context, chatID string, reply flows.Reply) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{ID: m.nextID, ChatID: chatID, Reply: reply})
	return m.nextID, nil
}

func (m *fakeMessenger) ClearKeyboard(_ context.Context, _ string, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, messageID)
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, callbackID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, callbackID)
	return nil
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _ string, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeMedia struct{}

func (fakeMedia) FetchMedia(_ context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("no file")
	}
	return []byte("qr:" + ref), nil
}

func mediaRef(ref string) *flows.Media {
	return &flows.Media{Ref: ref, MimeType: "image/jpeg"}
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	handler   *Handler
	messenger *fakeMessenger
	finance   *financetest.Fake
	sessions  *session.Manager
	engine    *flows.Engine
	clock     *clock.Fake
	metrics   *metrics.Metrics
	nextMsgID int
}

func newHarness(t *testing.T, authEnabled bool) *harness {
	t.Helper()
	return newHarnessWithStore(t, authEnabled, nil)
}

func newHarnessWithStore(t *testing.T, authEnabled bool, store session.Store) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC))
	if store == nil {
		store = memory.New(clk)
	}
	m := metrics.NewMetrics(false, true)

	sessions, err := session.NewManager(session.Config{Store: store, Clock: clk, Logger: logger.Nop()})
	require.NoError(t, err)
	authEngine, err := auth.NewEngine(auth.Config{
		Sessions: sessions,
		Logger:   logger.Nop(),
		Metrics:  m,
		Secret:   testPassword,
	})
	require.NoError(t, err)

	fin := financetest.New()
	fin.Accounts = []finance.Account{{ID: "acct-1", Provider: "DANA", Name: "Utama", Balance: 1250000}}

	engine, err := flows.NewEngine(flows.Config{
		Sessions: sessions,
		Logger:   logger.Nop(),
		Metrics:  m,
		Flows: []flows.Flow{
			flows.NewOnboarding(fin),
			flows.NewTransfer(fin, fakeMedia{}),
			flows.NewLogin(authEngine),
			flows.NewRemoveWallet(fin),
		},
	})
	require.NoError(t, err)

	messenger := &fakeMessenger{}
	handler, err := NewHandler(Config{
		Flows:       engine,
		Auth:        authEngine,
		Sessions:    sessions,
		Finance:     fin,
		Messenger:   messenger,
		Logger:      logger.Nop(),
		Metrics:     m,
		AuthEnabled: authEnabled,
	})
	require.NoError(t, err)

	return &harness{
		t:         t,
		ctx:       context.Background(),
		handler:   handler,
		messenger: messenger,
		finance:   fin,
		sessions:  sessions,
		engine:    engine,
		clock:     clk,
		metrics:   m,
		nextMsgID: 1000,
	}
}

// say sends a text message and returns the bot's reply text.
func (h *harness) say(text string) string {
	h.t.Helper()
	h.nextMsgID++
	before := len(h.messenger.sent)
	require.NoError(h.t, h.handler.Handle(h.ctx, Event{ChatID: chatID, MessageID: h.nextMsgID, Text: text}))
	return h.replySince(before)
}

// press taps a button on the latest bot message.
func (h *harness) press(label string) string {
	h.t.Helper()
	last := h.messenger.last()
	data := ""
	for _, row := range last.Reply.Keyboard {
		for _, b := range row {
			if b.Label == label {
				data = b.Data
			}
		}
	}
	require.NotEmpty(h.t, data, "no button %q on the last message", label)
	return h.callback(last.ID, data)
}

func (h *harness) callback(messageID int, data string) string {
	h.t.Helper()
	before := len(h.messenger.sent)
	require.NoError(h.t, h.handler.Handle(h.ctx, Event{
		ChatID:       chatID,
		MessageID:    messageID,
		CallbackID:   "cb-" + data,
		CallbackData: data,
	}))
	return h.replySince(before)
}

func (h *harness) replySince(before int) string {
	h.messenger.mu.Lock()
	defer h.messenger.mu.Unlock()
	if len(h.messenger.sent) == before {
		return ""
	}
	return h.messenger.sent[len(h.messenger.sent)-1].Reply.Text
}

func (h *harness) login() {
	h.t.Helper()
	h.say("/login")
	require.Contains(h.t, h.say(testPassword), "logged in")
}

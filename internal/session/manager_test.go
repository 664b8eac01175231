package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

var start = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*session.Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(start)
	m, err := session.NewManager(session.Config{
		Store:  memory.New(clk),
		Clock:  clk,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return m, clk
}

func TestNewManager_Validation(t *testing.T) {
	_, err := session.NewManager(session.Config{Logger: logger.Nop()})
	assert.Error(t, err)

	_, err = session.NewManager(session.Config{Store: memory.New(nil)})
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "42", session.KindAddWallet, session.Data{"x": []byte(`1`)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.ID, "session-"))
	assert.Equal(t, "", s.State)
	assert.Equal(t, start, s.CreatedAt)
	assert.Equal(t, start.Add(session.DefaultLifetime), s.ExpiresAt)

	got, err := m.GetActiveSession(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, session.KindAddWallet, got.Kind)
	assert.JSONEq(t, `1`, string(got.Data["x"]))
}

func TestCreateSession_KeepsSameKind(t *testing.T) {
	m, clk := newManager(t)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "42", session.KindLogin, nil)
	require.NoError(t, err)
	clk.Advance(time.Second)
	second, err := m.CreateSession(ctx, "42", session.KindLogin, nil)
	require.NoError(t, err)

	got, err := m.GetSessionByKind(ctx, "42", session.KindLogin)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	removed, err := m.DeleteSession(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err = m.GetSessionByKind(ctx, "42", session.KindLogin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestGetActiveSession_None(t *testing.T) {
	m, _ := newManager(t)

	got, err := m.GetActiveSession(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetFlowSession_SkipsBookkeeping(t *testing.T) {
	m, clk := newManager(t)
	ctx := context.Background()

	flow, err := m.CreateSession(ctx, "42", session.KindTransfer, nil)
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = m.CreateSession(ctx, "42", session.KindAuthenticated, nil)
	require.NoError(t, err)

	got, err := m.GetFlowSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, flow.ID, got.ID)

	got, err = m.GetActiveSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, session.KindAuthenticated, got.Kind)
}

func TestUpdateSession_Merges(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "42", session.KindAddWallet, nil)
	require.NoError(t, err)

	_, err = m.UpdateSession(ctx, s.ID, session.Update{Data: session.MustEncode(map[string]string{"a": "1"})})
	require.NoError(t, err)
	upd := session.StateUpdate("awaiting_pin")
	upd.Data = session.MustEncode(map[string]string{"b": "2"})
	got, err := m.UpdateSession(ctx, s.ID, upd)
	require.NoError(t, err)

	assert.Equal(t, "awaiting_pin", got.State)
	var decoded map[string]string
	require.NoError(t, got.Data.Decode(&decoded))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, decoded)
}

func TestUpdateSession_Deleted(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "42", session.KindTransfer, nil)
	require.NoError(t, err)
	_, err = m.DeleteSession(ctx, s.ID)
	require.NoError(t, err)

	_, err = m.UpdateSession(ctx, s.ID, session.StateUpdate("x"))
	assert.True(t, errors.Is(err, session.ErrSessionNotFound))
	assert.False(t, session.IsStoreError(err))
}

func TestExpiry(t *testing.T) {
	m, clk := newManager(t)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "42", session.KindTransfer, nil)
	require.NoError(t, err)

	clk.Advance(session.DefaultLifetime - time.Second)
	got, err := m.GetActiveSession(ctx, "42")
	require.NoError(t, err)
	assert.NotNil(t, got)

	clk.Advance(time.Second)
	got, err = m.GetActiveSession(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, got, "a session is invisible from its expiry instant")

	ok, err := m.ExtendSession(ctx, s.ID, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "expired sessions cannot be revived")
}

func TestExtendSession(t *testing.T) {
	m, clk := newManager(t)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, "42", session.KindAuthenticated, nil)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	ok, err := m.ExtendSession(ctx, s.ID, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(23 * time.Hour)
	got, err := m.GetSessionByKind(ctx, "42", session.KindAuthenticated)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, start.Add(time.Minute+24*time.Hour), got.ExpiresAt)
}

func TestDeleteSessionsByKind(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "42", session.KindLogin, nil)
	require.NoError(t, err)
	_, err = m.CreateSession(ctx, "42", session.KindLogin, nil)
	require.NoError(t, err)
	_, err = m.CreateSession(ctx, "7", session.KindLogin, nil)
	require.NoError(t, err)

	removed, err := m.DeleteSessionsByKind(ctx, "42", session.KindLogin)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.DeleteSessionsByKind(ctx, "42", session.KindLogin)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := m.GetSessionByKind(ctx, "7", session.KindLogin)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestPurgeExpired(t *testing.T) {
	m, clk := newManager(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "1", session.KindTransfer, nil)
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)
	_, err = m.CreateSession(ctx, "2", session.KindTransfer, nil)
	require.NoError(t, err)

	clk.Advance(6 * time.Minute)
	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionDataEncoding(t *testing.T) {
	type payload struct {
		Phone string `json:"phone,omitempty"`
		PIN   string `json:"pin,omitempty"`
	}

	patch, err := session.Encode(payload{Phone: "81234567890"})
	require.NoError(t, err)
	assert.Len(t, patch, 1, "omitted fields are absent from the patch")

	merged := session.Data{"pin": []byte(`"123456"`)}.Merge(patch)
	var p payload
	require.NoError(t, merged.Decode(&p))
	assert.Equal(t, payload{Phone: "81234567890", PIN: "123456"}, p)

	_, err = session.Encode([]int{1})
	assert.Error(t, err)
}

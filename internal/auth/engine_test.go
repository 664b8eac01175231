package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/internal/store/memory"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

const (
	testSecret = "s3cret-pass" //nolint:gosec // Test constant, not a real credential.
	testChat   = "1001"
)

type fixture struct {
	engine   *Engine
	sessions *session.Manager
	clock    *clock.Fake
}

func newFixture(t *testing.T, secret string) fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC))
	sessions, err := session.NewManager(session.Config{
		Store:  memory.New(clk),
		Clock:  clk,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	engine, err := NewEngine(Config{
		Sessions: sessions,
		Logger:   logger.Nop(),
		Secret:   secret,
	})
	require.NoError(t, err)
	return fixture{engine: engine, sessions: sessions, clock: clk}
}

func TestNewEngine_Validation(t *testing.T) {
	f := newFixture(t, testSecret)

	_, err := NewEngine(Config{Sessions: f.sessions, Logger: logger.Nop()})
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewEngine(Config{Logger: logger.Nop(), Secret: testSecret})
	assert.Error(t, err)

	assert.Equal(t, DefaultMaxAttempts, f.engine.MaxAttempts())
}

func TestLockoutScenario(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	_, err := f.sessions.CreateSession(ctx, testChat, session.KindLogin, nil)
	require.NoError(t, err)

	err = f.engine.Authenticate(ctx, testChat, "wrong")
	var failure *FailureError
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2, failure.AttemptsLeft)

	status, err := f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, Status{AttemptsLeft: 2}, status)

	err = f.engine.Authenticate(ctx, testChat, "wrong")
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 1, failure.AttemptsLeft)

	err = f.engine.Authenticate(ctx, testChat, "wrong")
	var lockout *LockoutError
	require.True(t, errors.As(err, &lockout))
	assert.Equal(t, 30, lockout.RemainingMinutes)

	status, err = f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.True(t, status.Blocked)
	assert.Equal(t, 30, status.RemainingMinutes)

	f.clock.Advance(90 * time.Second)
	err = f.engine.Authenticate(ctx, testChat, testSecret)
	require.True(t, errors.As(err, &lockout), "correct password is refused during lockout")
	assert.Equal(t, 29, lockout.RemainingMinutes)

	ok, err := f.engine.IsAuthenticated(ctx, testChat)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockoutOutlivesDefaultLifetime(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		_ = f.engine.Authenticate(ctx, testChat, "wrong")
	}

	f.clock.Advance(session.DefaultLifetime + time.Minute)
	status, err := f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.True(t, status.Blocked)
	assert.Equal(t, 14, status.RemainingMinutes)

	f.clock.Advance(14 * time.Minute)
	status, err = f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, Status{AttemptsLeft: DefaultMaxAttempts}, status)

	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))
}

func TestIsBlocked_ClearsStaleLockout(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	until := f.clock.Now().Add(-time.Minute)
	_, err := f.sessions.CreateSession(ctx, testChat, session.KindAuthAttempts,
		session.MustEncode(attempts{Attempts: 3, BlockedUntil: &until}))
	require.NoError(t, err)

	status, err := f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, Status{AttemptsLeft: 3}, status)

	s, err := f.sessions.GetSessionByKind(ctx, testChat, session.KindAuthAttempts)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSuccessResetsCounter(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	assert.True(t, IsFailure(f.engine.Authenticate(ctx, testChat, "wrong")))
	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))

	status, err := f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, Status{AttemptsLeft: 3}, status)

	// A later run of failures starts from zero.
	assert.True(t, IsFailure(f.engine.Authenticate(ctx, testChat, "wrong")))
	assert.True(t, IsFailure(f.engine.Authenticate(ctx, testChat, "wrong")))
	status, err = f.engine.IsBlocked(ctx, testChat)
	require.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 1, status.AttemptsLeft)
}

func TestAuthenticatedWindow(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))

	f.clock.Advance(24*time.Hour - time.Second)
	ok, err := f.engine.IsAuthenticated(ctx, testChat)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(time.Second)
	ok, err = f.engine.IsAuthenticated(ctx, testChat)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticateSupersedesPriorGrant(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))
	first, err := f.sessions.GetSessionByKind(ctx, testChat, session.KindAuthenticated)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))

	_, err = f.sessions.UpdateSession(ctx, first.ID, session.StateUpdate("x"))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	require.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))

	removed, err := f.engine.Logout(ctx, testChat)
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err := f.engine.IsAuthenticated(ctx, testChat)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = f.engine.Logout(ctx, testChat)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestChatsAreIndependent(t *testing.T) {
	f := newFixture(t, testSecret)
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		_ = f.engine.Authenticate(ctx, "a", "wrong")
	}
	require.NoError(t, f.engine.Authenticate(ctx, "b", testSecret))

	ok, err := f.engine.IsAuthenticated(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.engine.IsAuthenticated(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBcryptSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)

	f := newFixture(t, string(hash))
	ctx := context.Background()

	assert.True(t, IsFailure(f.engine.Authenticate(ctx, testChat, string(hash))))
	assert.NoError(t, f.engine.Authenticate(ctx, testChat, testSecret))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "authentication failed, 2 attempts left", (&FailureError{AttemptsLeft: 2}).Error())
	assert.Equal(t, "authentication locked for 5 more minutes", (&LockoutError{RemainingMinutes: 5}).Error())
	assert.True(t, IsLockout(&LockoutError{}))
	assert.False(t, IsLockout(errors.New("x")))
}

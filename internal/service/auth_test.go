package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	s, err := store.Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewAuthService(store.NewUserStore(s), logger.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newTestAuthService(t)

	user, err := auth.Register(context.Background(), "alice", "s3cret", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "s3cret", user.PasswordHash, "password is stored hashed")

	got, err := auth.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterMissingFields(t *testing.T) {
	auth := newTestAuthService(t)

	_, err := auth.Register(context.Background(), "", "pw", "")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = auth.Register(context.Background(), "alice", "", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestRegisterDuplicates(t *testing.T) {
	auth := newTestAuthService(t)

	_, err := auth.Register(context.Background(), "alice", "pw", "alice@example.com")
	require.NoError(t, err)

	_, err = auth.Register(context.Background(), "Alice", "pw", "other@example.com")
	assert.ErrorIs(t, err, store.ErrUsernameTaken)

	_, err = auth.Register(context.Background(), "bob", "pw", "ALICE@example.com")
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newTestAuthService(t)

	_, err := auth.Register(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)

	// Unknown user and wrong password produce the same error, so a caller
	// cannot probe which usernames exist.
	_, unknownErr := auth.Login(context.Background(), "mallory", "s3cret")
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)

	_, wrongPwErr := auth.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, wrongPwErr, ErrInvalidCredentials)

	assert.Equal(t, unknownErr, wrongPwErr)
}

func TestCurrentUser(t *testing.T) {
	auth := newTestAuthService(t)

	user, err := auth.Register(context.Background(), "alice", "pw", "")
	require.NoError(t, err)

	got, err := auth.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = auth.CurrentUser(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

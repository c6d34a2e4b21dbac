package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour, "tenant-console")
	require.NoError(t, err)
	return tm
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tm := newTestTokens(t)
	userID := uuid.New()

	pair, err := tm.Generate(userID, "ops@example.com")
	require.NoError(t, err)

	claims, err := tm.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "ops@example.com", claims.Email)
	require.WithinDuration(t, pair.AccessExpiresAt, claims.ExpiresAt, time.Second)

	refresh, err := tm.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, userID, refresh.UserID)
	require.Equal(t, pair.RefreshTokenID, refresh.TokenID)
}

func TestTokenManagerRejectsWrongType(t *testing.T) {
	tm := newTestTokens(t)
	pair, err := tm.Generate(uuid.New(), "ops@example.com")
	require.NoError(t, err)

	_, err = tm.ParseAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	tm := newTestTokens(t)
	issued := time.Now().Add(-time.Hour)
	tm.now = func() time.Time { return issued }
	pair, err := tm.Generate(uuid.New(), "ops@example.com")
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseAccess(pair.AccessToken)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	tm := newTestTokens(t)
	other, err := NewTokenManager("other-secret", time.Minute, time.Hour, "tenant-console")
	require.NoError(t, err)
	pair, err := other.Generate(uuid.New(), "x@example.com")
	require.NoError(t, err)

	_, err = tm.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseAccess("")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseAccess("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManagerValidation(t *testing.T) {
	_, err := NewTokenManager("", time.Minute, time.Hour, "")
	require.Error(t, err)
	_, err = NewTokenManager("s", 0, time.Hour, "")
	require.Error(t, err)
	_, err = NewTokenManager("s", time.Minute, 0, "")
	require.Error(t, err)
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState(0)
	require.NoError(t, err)
	b, err := GenerateState(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 43)
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, 24*time.Hour)

	token, err := m.GenerateAccessToken("alice@x.io", "alice@x.io", "alice")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.io", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "collabboard-api", claims.Issuer)
}

func TestAccessTokenExpired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute, 24*time.Hour)

	token, err := m.GenerateAccessToken("u1", "u1@x.io", "u1")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour, time.Hour).GenerateAccessToken("u1", "u1@x.io", "u1")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour, time.Hour).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, 24*time.Hour)

	token, err := m.GenerateRefreshToken("bob@x.io")
	require.NoError(t, err)

	subject, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.io", subject)
}

func TestValidateGarbage(t *testing.T) {
	m := NewJWTManager("secret", time.Hour, time.Hour)
	_, err := m.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

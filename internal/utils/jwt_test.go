package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken(testSecret, "a@x.com", 42, "admin", 30)
	require.NoError(t, err)
	require.NotEmpty(t, at.Token)

	claims, err := ParseAccessToken(testSecret, at.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	rt, err := NewRefreshToken(testSecret, "a@x.com", 7)
	require.NoError(t, err)

	claims, err := ParseRefreshToken(testSecret, rt.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, "refresh", claims.TokenType)
}

func TestRefreshTokenRejectedByAccessParser(t *testing.T) {
	rt, err := NewRefreshToken(testSecret, "a@x.com", 7)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, rt.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenRejectedByRefreshParser(t *testing.T) {
	at, err := NewAccessToken(testSecret, "a@x.com", 42, "client", 30)
	require.NoError(t, err)

	_, err = ParseRefreshToken(testSecret, at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	at, err := NewAccessToken(testSecret, "a@x.com", 42, "client", 30)
	require.NoError(t, err)

	_, err = ParseAccessToken("another-secret", at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	// Sign an already expired access token by hand.
	claims := AccessClaims{
		UserID: 1,
		Role:   "client",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsUnexpectedAlgorithm(t *testing.T) {
	// "none" and non-HMAC algorithms must never be accepted.
	claims := jwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken(testSecret, "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseRefreshToken(testSecret, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

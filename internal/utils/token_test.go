package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureTokenLengthAndCharset(t *testing.T) {
	tok, err := NewSecureToken(SecureTokenBytes)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err, "token must be URL-safe base64")
	assert.Len(t, raw, SecureTokenBytes)
}

func TestNewSecureTokenDefaultsOnBadLength(t *testing.T) {
	tok, err := NewSecureToken(0)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, SecureTokenBytes)
}

func TestNewSecureTokenUniqueness(t *testing.T) {
	seen := make(map[string]bool, 256)
	for i := 0; i < 256; i++ {
		tok, err := NewSecureToken(SecureTokenBytes)
		require.NoError(t, err)
		assert.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true
	}
}

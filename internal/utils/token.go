package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// SecureTokenBytes is the default entropy for single-use tokens. 32 bytes
// (256 bits) keeps guessing infeasible well past any validity window we use.
const SecureTokenBytes = 32

// NewSecureToken returns a URL-safe opaque string built from n bytes of
// cryptographically secure randomness. These tokens back the e-mail
// verification and password reset flows; signed JWTs are never used there.
func NewSecureToken(n int) (string, error) {
	if n <= 0 {
		n = SecureTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

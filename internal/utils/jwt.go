package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token codec for the two signed credential kinds the API issues. Access and
// refresh tokens are both HS256 JWTs over the same secret but carry
// structurally distinct claim sets: refresh tokens embed a "type" claim set
// to "refresh" and access tokens must not carry it. The two Parse functions
// below each enforce their own shape, so a refresh token presented where an
// access token is expected (or the reverse) fails to parse instead of being
// silently accepted. Expiry is checked by the jwt library together with the
// signature; no clock-skew leeway is configured, an expired token is rejected
// the second its exp passes.

const refreshTokenType = "refresh"

var (
	// ErrInvalidToken covers every decode failure: bad signature, wrong
	// algorithm, expired, malformed, or wrong token type for the entry point.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. TokenType is
// always "refresh"; its presence is what keeps refresh tokens out of the
// access-token path.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// AccessToken bundles a signed access token string with its expiry so
// handlers can echo the expiry back to clients.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the signed refresh token string plus expiry.
type RefreshToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 access token for a user. The subject claim is
// the user's email; user id and role travel as custom claims so the
// authorization middleware can gate on role without a second lookup.
func NewAccessToken(secret, email string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := AccessClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs an HS256 refresh token for a user. Refresh tokens
// carry only the subject and the refresh type marker; they are never stored
// server-side and stay valid until expiry (no revocation list).
func NewRefreshToken(secret, email string, ttlDays int) (RefreshToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry of an access token and
// returns its claims. Tokens carrying the refresh type marker are rejected
// even when their signature is valid.
func ParseAccessToken(secret, raw string) (*AccessClaims, error) {
	var claims struct {
		AccessClaims
		TokenType string `json:"type"`
	}
	if err := parseInto(secret, raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	out := claims.AccessClaims
	return &out, nil
}

// ParseRefreshToken verifies signature and expiry of a refresh token and
// returns its claims. Tokens without the refresh type marker (i.e. access
// tokens) are rejected.
func ParseRefreshToken(secret, raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parseInto(secret, raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// parseInto decodes raw into claims, pinning the algorithm to HS256. Any
// library error collapses into ErrInvalidToken so callers never branch on
// parse internals.
func parseInto(secret, raw string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

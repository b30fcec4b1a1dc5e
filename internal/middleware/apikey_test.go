package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// stubSistemas implements SistemaValidator the way the real repository does:
// unknown and inactive keys are both sql.ErrNoRows, and every successful
// validation counts as an activity touch.
type stubSistemas struct {
	byKey   map[string]repository.Sistema
	touched int
}

func (s *stubSistemas) ValidateKey(_ context.Context, apiKey string) (repository.Sistema, error) {
	sys, ok := s.byKey[apiKey]
	if !ok || !sys.Active {
		return repository.Sistema{}, sql.ErrNoRows
	}
	s.touched++
	return sys, nil
}

func TestAPIKeyAuthMissingHeader(t *testing.T) {
	store := &stubSistemas{byKey: map[string]repository.Sistema{}}
	rec := doRequest(t, []echo.MiddlewareFunc{APIKeyAuth(store)}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, store.touched)
}

func TestAPIKeyAuthUnknownKey(t *testing.T) {
	store := &stubSistemas{byKey: map[string]repository.Sistema{}}
	hdr := http.Header{HeaderAPIKey: {"nope"}}
	rec := doRequest(t, []echo.MiddlewareFunc{APIKeyAuth(store)}, hdr)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, store.touched)
}

func TestAPIKeyAuthInactiveKeySameAsUnknown(t *testing.T) {
	store := &stubSistemas{byKey: map[string]repository.Sistema{
		"k-off": {ID: 1, Name: "legacy", APIKey: "k-off", Active: false},
	}}
	hdr := http.Header{HeaderAPIKey: {"k-off"}}
	rec := doRequest(t, []echo.MiddlewareFunc{APIKeyAuth(store)}, hdr)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, store.touched, "a failed key must not advance last activity")

	unknown := doRequest(t, []echo.MiddlewareFunc{APIKeyAuth(store)}, http.Header{HeaderAPIKey: {"nope"}})
	assert.Equal(t, unknown.Code, rec.Code)
	assert.JSONEq(t, unknown.Body.String(), rec.Body.String(),
		"inactive and unknown keys must be indistinguishable")
}

func TestAPIKeyAuthValidKey(t *testing.T) {
	store := &stubSistemas{byKey: map[string]repository.Sistema{
		"k-live": {ID: 3, Name: "portal", APIKey: "k-live", Active: true},
	}}
	hdr := http.Header{HeaderAPIKey: {"k-live"}}
	rec := doRequest(t, []echo.MiddlewareFunc{APIKeyAuth(store)}, hdr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.touched)
}

func TestBothChainsStacked(t *testing.T) {
	users := &stubUsers{users: map[string]repository.User{
		"root@x.com": {ID: 2, Email: "root@x.com", Role: "admin", IsEmailVerified: true},
	}}
	sistemas := &stubSistemas{byKey: map[string]repository.Sistema{
		"k-live": {ID: 3, Name: "portal", APIKey: "k-live", Active: true},
	}}
	chain := []echo.MiddlewareFunc{
		Authenticate(testSecret, users),
		RequireVerified(),
		RequireRole("admin"),
		APIKeyAuth(sistemas),
	}

	// Valid bearer but no key: the second chain still rejects.
	hdr := bearerFor(t, "root@x.com", 2, "admin")
	rec := doRequest(t, chain, hdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Both credentials present: passes.
	hdr.Set(HeaderAPIKey, "k-live")
	rec = doRequest(t, chain, hdr)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Valid key but no bearer: the first chain rejects.
	rec = doRequest(t, []echo.MiddlewareFunc{chain[0], chain[3]},
		http.Header{HeaderAPIKey: {"k-live"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

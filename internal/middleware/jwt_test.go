package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

const testSecret = "middleware-test-secret"

// stubUsers implements UserLookup over a map keyed by e-mail.
type stubUsers struct {
	users map[string]repository.User
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (repository.User, error) {
	u, ok := s.users[email]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := okHandler
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	require.NoError(t, h(c))
	return rec
}

func bearerFor(t *testing.T, email string, id uint64, role string) http.Header {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, email, id, role, 30)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + at.Token}}
}

func TestAuthenticateMissingHeader(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{}}
	rec := doRequest(t, []echo.MiddlewareFunc{Authenticate(testSecret, store)}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateBadToken(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{}}
	hdr := http.Header{"Authorization": {"Bearer not-a-token"}}
	rec := doRequest(t, []echo.MiddlewareFunc{Authenticate(testSecret, store)}, hdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRefreshTokenRejected(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"a@x.com": {ID: 1, Email: "a@x.com", Role: "client"},
	}}
	rt, err := utils.NewRefreshToken(testSecret, "a@x.com", 7)
	require.NoError(t, err)
	hdr := http.Header{"Authorization": {"Bearer " + rt.Token}}
	rec := doRequest(t, []echo.MiddlewareFunc{Authenticate(testSecret, store)}, hdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateUnknownSubject(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{}}
	rec := doRequest(t, []echo.MiddlewareFunc{Authenticate(testSecret, store)},
		bearerFor(t, "ghost@x.com", 9, "client"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateSuccessInjectsUser(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"a@x.com": {ID: 7, Email: "a@x.com", Role: "admin", IsEmailVerified: true},
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header = bearerFor(t, "a@x.com", 7, "admin")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Authenticate(testSecret, store)(func(c echo.Context) error {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		assert.Equal(t, uint64(7), u.ID)
		assert.Equal(t, "admin", c.Get(CtxRole))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireVerifiedBlocksUnverified(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"a@x.com": {ID: 1, Email: "a@x.com", Role: "client", IsEmailVerified: false},
	}}
	rec := doRequest(t, []echo.MiddlewareFunc{
		Authenticate(testSecret, store),
		RequireVerified(),
	}, bearerFor(t, "a@x.com", 1, "client"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireVerifiedPassesVerified(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"a@x.com": {ID: 1, Email: "a@x.com", Role: "client", IsEmailVerified: true},
	}}
	rec := doRequest(t, []echo.MiddlewareFunc{
		Authenticate(testSecret, store),
		RequireVerified(),
	}, bearerFor(t, "a@x.com", 1, "client"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleForbidsNonAdmin(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"a@x.com": {ID: 1, Email: "a@x.com", Role: "client", IsEmailVerified: true},
	}}
	rec := doRequest(t, []echo.MiddlewareFunc{
		Authenticate(testSecret, store),
		RequireVerified(),
		RequireRole("admin"),
	}, bearerFor(t, "a@x.com", 1, "client"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleWithoutAuthenticate(t *testing.T) {
	// Misconfigured route: role gate without the auth chain still answers
	// 403, never a panic or 500.
	rec := doRequest(t, []echo.MiddlewareFunc{RequireRole("admin")}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAllowsAdmin(t *testing.T) {
	store := &stubUsers{users: map[string]repository.User{
		"root@x.com": {ID: 2, Email: "root@x.com", Role: "admin", IsEmailVerified: true},
	}}
	rec := doRequest(t, []echo.MiddlewareFunc{
		Authenticate(testSecret, store),
		RequireVerified(),
		RequireRole("admin"),
	}, bearerFor(t, "root@x.com", 2, "admin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
)

func cacheCfg() config.CacheConfig {
	return config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "respcache"}
}

func TestCacheNilClientIsNoOp(t *testing.T) {
	mw := CacheResponse(cacheCfg(), nil)

	rec := doRequest(t, []echo.MiddlewareFunc{mw}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCacheMissThenHit(t *testing.T) {
	mw := CacheResponse(cacheCfg(), newTestRedis(t))

	calls := 0
	counting := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"tipos": []string{"iluminação"}})
	}

	e := echo.New()
	req, rec := newReq(http.MethodGet, "/v1/tipos-ocorrencia")
	require.NoError(t, mw(counting)(e.NewContext(req, rec)))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.Equal(t, 1, calls)
	first := rec.Body.String()

	// Second request is served from the stored envelope without invoking
	// the handler, byte for byte.
	req, rec = newReq(http.MethodGet, "/v1/tipos-ocorrencia")
	require.NoError(t, mw(counting)(e.NewContext(req, rec)))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls, "handler must not run on a hit")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, first, rec.Body.String())
}

func TestCacheSkipsNonGet(t *testing.T) {
	mw := CacheResponse(cacheCfg(), newTestRedis(t))

	e := echo.New()
	for i := 0; i < 2; i++ {
		req, rec := newReq(http.MethodPost, "/v1/tipos-ocorrencia")
		require.NoError(t, mw(okHandler)(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	mw := CacheResponse(cacheCfg(), newTestRedis(t))

	failing := func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	e := echo.New()
	req, rec := newReq(http.MethodGet, "/v1/tipos-ocorrencia")
	require.NoError(t, mw(failing)(e.NewContext(req, rec)))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// The 500 was not stored: the next request misses again.
	req, rec = newReq(http.MethodGet, "/v1/tipos-ocorrencia")
	require.NoError(t, mw(failing)(e.NewContext(req, rec)))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestCacheKeyVariesByQuery(t *testing.T) {
	mw := CacheResponse(cacheCfg(), newTestRedis(t))

	echoQuery := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"q": c.QueryParam("q")})
	}

	e := echo.New()
	req, rec := newReq(http.MethodGet, "/v1/tipos-ocorrencia?q=a")
	require.NoError(t, mw(echoQuery)(e.NewContext(req, rec)))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// A different query string is a different cache entry.
	req, rec = newReq(http.MethodGet, "/v1/tipos-ocorrencia?q=b")
	require.NoError(t, mw(echoQuery)(e.NewContext(req, rec)))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"b"`)
}

func TestCacheFailsOpenOnRedisError(t *testing.T) {
	rdb := newTestRedis(t)
	mw := CacheResponse(cacheCfg(), rdb)
	require.NoError(t, rdb.Close())

	rec := doRequest(t, []echo.MiddlewareFunc{mw}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

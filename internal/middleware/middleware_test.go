package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/utils"
)

const testSecret = "test-secret"

func echoHolder(c echo.Context) error {
	return c.String(http.StatusOK, HolderFrom(c))
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHolderIdentityBearer(t *testing.T) {
	e := echo.New()
	e.GET("/who", echoHolder, HolderIdentity(testSecret))

	tok, err := utils.NewHolderToken(testSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := serve(e, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tok.Holder, rec.Body.String())
}

func TestHolderIdentityRejectsBadBearer(t *testing.T) {
	e := echo.New()
	e.GET("/who", echoHolder, HolderIdentity(testSecret))

	tok, err := utils.NewHolderToken("other-secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := serve(e, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid holder token")
}

func TestHolderIdentityRawHeader(t *testing.T) {
	e := echo.New()
	e.GET("/who", echoHolder, HolderIdentity(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HolderHeader, " browser-42 ")
	rec := serve(e, req)
	assert.Equal(t, "browser-42", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HolderHeader, fmt.Sprintf("%0*d", maxRawHolderLen+1, 0))
	rec = serve(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireHolder(t *testing.T) {
	e := echo.New()
	e.GET("/who", echoHolder, HolderIdentity(testSecret), RequireHolder())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HolderHeader, "h-1")
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLoggerFingerprintsHolder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/who", echoHolder, HolderIdentity(testSecret))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HolderHeader, "secret-holder")
	serve(e, req)
	serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "/who", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, utils.Fingerprint("secret-holder"), fields["holder"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusServiceUnavailable), entries[1].ContextMap()["status"])
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s-1/holds", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/sessions/:id/holds")
	c.Set(HolderKey, "h-1")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "holder_route"}
	assert.Equal(t, "rl:holder:h-1:route:POST /v1/sessions/:id/holds", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.1:holder:h-1:route:POST /v1/sessions/:id/holds", buildRateKey(cfg, c))
}

func TestCacheKeyUsesConcretePath(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "path"}

	key := func(path string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/v1/sessions/:id/layout")
		return cacheKeyFrom(cfg, c)
	}

	assert.NotEqual(t, key("/v1/sessions/a/layout"), key("/v1/sessions/b/layout"))
	assert.Equal(t, key("/v1/sessions/a/layout"), key("/v1/sessions/a/layout"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"rows":8}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"rows":8}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}

func TestDisabledMiddlewarePassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "ok", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func getTestRedisClient(t *testing.T) *redis.Client {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:6379", host), DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	rdb := getTestRedisClient(t)
	prefix := fmt.Sprintf("rl-test-%d", time.Now().UnixNano())
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Minute, KeyStrategy: "holder", Prefix: prefix,
	}
	e := echo.New()
	e.POST("/holds", echoHolder, HolderIdentity(testSecret), NewTokenBucket(cfg, rdb, nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/holds", nil)
		req.Header.Set(HolderHeader, "h-1")
		codes = append(codes, serve(e, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRedisCacheHit(t *testing.T) {
	rdb := getTestRedisClient(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "path", Prefix: fmt.Sprintf("cache-test-%d", time.Now().UnixNano()),
	}
	calls := 0
	e := echo.New()
	e.GET("/layout", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"rows": 8})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, httptest.NewRequest(http.MethodGet, "/layout", nil))
	second := serve(e, httptest.NewRequest(http.MethodGet, "/layout", nil))

	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

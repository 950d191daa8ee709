package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/redis"
	"github.com/angelmondragon/personacraft-backend/pkg/stackauth"
)

type stubResolver struct {
	mu    sync.Mutex
	calls int
	fn    func(token string) (*stackauth.User, error)
}

func (s *stubResolver) CurrentUser(_ context.Context, token string) (*stackauth.User, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(token)
}

func resolvesTo(id string) *stackauth.User {
	email := id + "@example.com"
	return &stackauth.User{ID: id, PrimaryEmail: &email}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), mr
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(identity.ID))
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resolver := &stubResolver{fn: func(string) (*stackauth.User, error) { return resolvesTo("user-1"), nil }}
	handler := Auth(AuthOptions{Resolver: resolver}, testLogger())(echoUserHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
	assert.Zero(t, resolver.calls)
}

func TestAuthAcceptsStackHeaderAndBearer(t *testing.T) {
	resolver := &stubResolver{fn: func(token string) (*stackauth.User, error) {
		return resolvesTo("user-" + token), nil
	}}
	handler := Auth(AuthOptions{Resolver: resolver}, testLogger())(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Stack-Access-Token", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-abc", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-xyz", rec.Body.String())
}

func TestAuthMapsTimeoutToRetryableStatus(t *testing.T) {
	resolver := &stubResolver{fn: func(string) (*stackauth.User, error) { return nil, stackauth.ErrTimeout }}
	handler := Auth(AuthOptions{Resolver: resolver}, testLogger())(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Stack-Access-Token", "slow")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeTimeout), errorCode(t, rec))
}

func TestAuthMapsRejectedToken(t *testing.T) {
	resolver := &stubResolver{fn: func(string) (*stackauth.User, error) { return nil, stackauth.ErrUnauthorized }}
	handler := Auth(AuthOptions{Resolver: resolver}, testLogger())(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Stack-Access-Token", "revoked")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthCachesResolvedIdentity(t *testing.T) {
	client, mr := newTestRedis(t)
	resolver := &stubResolver{fn: func(string) (*stackauth.User, error) { return resolvesTo("user-1"), nil }}
	handler := Auth(AuthOptions{Resolver: resolver, Cache: client, CacheTTL: time.Minute}, testLogger())(echoUserHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Stack-Access-Token", "opaque-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", rec.Body.String())
	}

	assert.Equal(t, 1, resolver.calls)
	key := client.IdentityKey(fingerprint("opaque-token"))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestAuthSkipsCacheWhenDisabled(t *testing.T) {
	client, _ := newTestRedis(t)
	resolver := &stubResolver{fn: func(string) (*stackauth.User, error) { return resolvesTo("user-1"), nil }}
	handler := Auth(AuthOptions{Resolver: resolver, Cache: client}, testLogger())(echoUserHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Stack-Access-Token", "opaque-token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, resolver.calls)
}

func TestCacheTTLFollowsTokenExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mint := func(exp time.Time) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("irrelevant"))
		require.NoError(t, err)
		return token
	}

	assert.Equal(t, 90*time.Second, cacheTTL(mint(now.Add(90*time.Second)), 5*time.Minute, now))
	assert.Equal(t, 5*time.Minute, cacheTTL(mint(now.Add(time.Hour)), 5*time.Minute, now))
	assert.Zero(t, cacheTTL(mint(now.Add(-time.Second)), 5*time.Minute, now))
	assert.Equal(t, 5*time.Minute, cacheTTL("not-a-jwt", 5*time.Minute, now))
	assert.Zero(t, cacheTTL(mint(now.Add(time.Hour)), 0, now))
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	a := fingerprint("token-a")
	assert.Equal(t, a, fingerprint("token-a"))
	assert.NotEqual(t, a, fingerprint("token-b"))
	assert.NotContains(t, a, "token-a")
	assert.Len(t, a, 64)
}

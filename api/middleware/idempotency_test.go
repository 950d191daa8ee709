package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

func keyedRequest(method, url, body, key string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(WithIdentity(req.Context(), users.Identity{ID: "user-1"}))
}

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d,"bytes":%d}`, n, len(body))
	})
}

func TestIdempotencyReplaysSuccessfulResponse(t *testing.T) {
	client, _ := newTestRedis(t)
	var calls int32
	handler := Idempotency(client, time.Hour, testLogger())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/v1/personas/generate", `{"brief":"x"}`, "key-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest(http.MethodPost, "/api/v1/personas/generate", `{"brief":"x"}`, "key-1"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	client, _ := newTestRedis(t)
	var calls int32
	handler := Idempotency(client, time.Hour, testLogger())(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/personas/migrate", `{"personas":[]}`, "key-2"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/personas/migrate", `{"personas":[{}]}`, "key-2"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	client, _ := newTestRedis(t)
	var calls int32
	handler := Idempotency(client, time.Hour, testLogger())(countingHandler(&calls, http.StatusInternalServerError))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/personas/generate", `{}`, "key-3"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyPassesThroughWithoutKeyOrStore(t *testing.T) {
	client, _ := newTestRedis(t)
	var calls int32
	handler := Idempotency(client, time.Hour, testLogger())(countingHandler(&calls, http.StatusOK))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/personas/generate", `{}`, ""))
	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/personas/generate", `{}`, ""))

	unstored := Idempotency(nil, time.Hour, testLogger())(countingHandler(&calls, http.StatusOK))
	unstored.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/personas/migrate", `{}`, "key-4"))
	unstored.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/personas/migrate", `{}`, "key-4"))

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

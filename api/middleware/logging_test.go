package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

func bufferedLogger(level zerolog.Level) (*logger.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.New(logger.Options{ServiceName: "test", Level: level, Format: logger.FormatJSON, Output: buf}), buf
}

func TestLoggingRecordsRoutePatternAndSize(t *testing.T) {
	logg, buf := bufferedLogger(zerolog.InfoLevel)
	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/personas/{personaId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/abc", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request.complete", entry["message"])
	assert.Equal(t, "/api/v1/personas/{personaId}", entry["route"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
	assert.EqualValues(t, 5, entry["bytes"])
}

func TestLoggingKeepsProbesAtDebug(t *testing.T) {
	logg, buf := bufferedLogger(zerolog.InfoLevel)
	handler := Logging(logg)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Zero(t, buf.Len(), "probe requests are debug only")

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Contains(t, buf.String(), "request.complete")
}

package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kiranshivaraju/genqueue/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marker(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Handler", name)
		w.WriteHeader(http.StatusOK)
	}
}

func fullDeps() api.Dependencies {
	return api.Dependencies{
		GenerateHandler: marker("generate"),
		StatusHandler:   marker("status"),
		QueueHandler:    marker("queue"),
		HealthHandler:   marker("health"),
		HistoryHandler:  marker("history"),
	}
}

func TestRouter_Routes(t *testing.T) {
	router := api.NewRouter(fullDeps())

	tests := []struct {
		method, path, handler string
	}{
		{http.MethodPost, "/generate", "generate"},
		{http.MethodGet, "/status/0d6f4f5e-7a7b-4c1e-9d59-2b9b5b0f1c11", "status"},
		{http.MethodGet, "/queue", "queue"},
		{http.MethodGet, "/health", "health"},
		{http.MethodGet, "/history", "history"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.handler, w.Header().Get("X-Handler"))
		})
	}
}

func TestRouter_MissingHandlerIsNotImplemented(t *testing.T) {
	router := api.NewRouter(api.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_IMPLEMENTED", body["code"])
}

func TestRouter_NotFound(t *testing.T) {
	router := api.NewRouter(fullDeps())

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := api.NewRouter(fullDeps())

	req := httptest.NewRequest(http.MethodGet, "/generate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_SetsRequestID(t *testing.T) {
	var seen string
	deps := fullDeps()
	deps.QueueHandler = func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	}
	router := api.NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "abc-123", seen)
}

func TestRouter_RecoversPanics(t *testing.T) {
	deps := fullDeps()
	deps.QueueHandler = func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}
	router := api.NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

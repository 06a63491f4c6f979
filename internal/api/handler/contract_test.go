package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/genqueue/internal/api"
	"github.com/kiranshivaraju/genqueue/internal/api/handler"
	"github.com/kiranshivaraju/genqueue/internal/archive"
	"github.com/kiranshivaraju/genqueue/internal/generator/mock"
	"github.com/kiranshivaraju/genqueue/internal/scheduler"
	"github.com/kiranshivaraju/genqueue/internal/store"
	"github.com/kiranshivaraju/genqueue/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── test server ─────────────────────────────────────────────────────────────

type testServer struct {
	srv       *httptest.Server
	scheduler *scheduler.Scheduler
}

func newTestServer(t *testing.T, gen models.Generator) *testServer {
	t.Helper()
	return newTestServerWithClock(t, gen, time.Now)
}

// newTestServerWithClock drives record timestamps and expiry from now.
func newTestServerWithClock(t *testing.T, gen models.Generator, now func() time.Time) *testServer {
	t.Helper()
	st := store.NewMemoryStore(time.Hour, store.WithClock(now))
	sched := scheduler.New(st, gen,
		scheduler.WithClock(now),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	router := api.NewRouter(api.Dependencies{
		GenerateHandler: handler.NewGenerateHandler(sched),
		StatusHandler:   handler.NewStatusHandler(st, sched),
		QueueHandler:    handler.NewQueueHandler(sched),
		HealthHandler: handler.NewHealthHandler(sched, map[string]handler.Check{
			"store": st.Ping,
		}, time.Now),
		HistoryHandler: handler.NewHistoryHandler(archive.Noop{}),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})
	return &testServer{srv: srv, scheduler: sched}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) submit(t *testing.T, prompt string) string {
	t.Helper()
	code, body := ts.do(t, http.MethodPost, "/generate", `{"prompt":"`+prompt+`"}`)
	require.Equal(t, http.StatusOK, code, body)
	return body["requestId"].(string)
}

func (ts *testServer) waitFor(t *testing.T, id, status string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		code, body := ts.do(t, http.MethodGet, "/status/"+id, "")
		if code != http.StatusOK {
			return false
		}
		last = body
		return body["status"] == status
	}, 3*time.Second, 10*time.Millisecond, "job %s never reached %s", id, status)
	return last
}

func parseTime(t *testing.T, v any) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, v.(string))
	require.NoError(t, err)
	return ts
}

// ─── scenarios ───────────────────────────────────────────────────────────────

func TestContract_SubmitAndPollToCompletion(t *testing.T) {
	ts := newTestServer(t, mock.NewMockGenerator("https://cdn.example/fox.png"))

	code, body := ts.do(t, http.MethodPost, "/generate", `{"prompt":"a red fox"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "Request queued for processing", body["message"])
	assert.Equal(t, float64(1), body["queuePosition"])

	done := ts.waitFor(t, body["requestId"].(string), "completed")
	assert.Equal(t, "https://cdn.example/fox.png", done["result"])
	assert.Equal(t, "a red fox", done["prompt"])
	assert.Equal(t, models.DefaultModel, done["model"])
	_, hasErr := done["error"]
	assert.False(t, hasErr)
}

func TestContract_SequentialExecution(t *testing.T) {
	ts := newTestServer(t, mock.NewDelayedGenerator(100*time.Millisecond))

	first := ts.submit(t, "first")
	second := ts.submit(t, "second")

	code, q := ts.do(t, http.MethodGet, "/queue", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, q["isProcessing"])

	a := ts.waitFor(t, first, "completed")
	b := ts.waitFor(t, second, "completed")

	assert.False(t, parseTime(t, b["startedAt"]).Before(parseTime(t, a["completedAt"])))
}

func TestContract_QueuedJobReportsPosition(t *testing.T) {
	ts := newTestServer(t, mock.NewBlockingGenerator())

	ts.submit(t, "running")
	require.Eventually(t, func() bool {
		_, q := ts.do(t, http.MethodGet, "/queue", "")
		return q["isProcessing"] == true && q["queueLength"] == float64(0)
	}, time.Second, 5*time.Millisecond)

	waiting := ts.submit(t, "waiting")
	code, body := ts.do(t, http.MethodGet, "/status/"+waiting, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, float64(1), body["queuePosition"])

	_, q := ts.do(t, http.MethodGet, "/queue", "")
	assert.Equal(t, float64(1), q["queueLength"])
	items := q["queue"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, waiting, items[0].(map[string]any)["id"])
}

func TestContract_MissingPromptLeavesQueueAlone(t *testing.T) {
	ts := newTestServer(t, mock.NewBlockingGenerator())

	code, body := ts.do(t, http.MethodPost, "/generate", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
	assert.Equal(t, "Prompt is required", body["error"])

	_, q := ts.do(t, http.MethodGet, "/queue", "")
	assert.Equal(t, float64(0), q["queueLength"])
	assert.Equal(t, false, q["isProcessing"])
}

func TestContract_UnknownID(t *testing.T) {
	ts := newTestServer(t, mock.NewMockGenerator("u"))

	code, body := ts.do(t, http.MethodGet, "/status/unknown-id", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Request not found", body["error"])
}

func TestContract_ExpiredJobIsNotFound(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 2, 17, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	ts := newTestServerWithClock(t, mock.NewMockGenerator("u"), clock)

	id := ts.submit(t, "short-lived")
	ts.waitFor(t, id, "completed")

	advance(59 * time.Minute)
	code, _ := ts.do(t, http.MethodGet, "/status/"+id, "")
	assert.Equal(t, http.StatusOK, code, "still inside the retention window")

	advance(2 * time.Minute)
	code, body := ts.do(t, http.MethodGet, "/status/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "Request not found", body["error"])
}

func TestContract_FailureIsReportedAndQueueContinues(t *testing.T) {
	gen := &mock.MockGenerator{
		Name_: "flaky",
		GenerateFunc: func(_ context.Context, prompt, _ string) (models.GenerationResult, error) {
			if prompt == "bad" {
				return models.GenerationResult{}, errors.New("Redirected to login page - authentication required")
			}
			return models.GenerationResult{ResultURL: "ok"}, nil
		},
	}
	ts := newTestServer(t, gen)

	bad := ts.submit(t, "bad")
	good := ts.submit(t, "good")

	failed := ts.waitFor(t, bad, "failed")
	assert.Equal(t, "Redirected to login page - authentication required", failed["error"])
	_, hasResult := failed["result"]
	assert.False(t, hasResult)

	ts.waitFor(t, good, "completed")
}

func TestContract_Health(t *testing.T) {
	ts := newTestServer(t, mock.NewMockGenerator("u"))

	code, body := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["queueLength"])
	assert.Equal(t, false, body["isProcessing"])
	parseTime(t, body["timestamp"])
}

func TestContract_HistoryDisabled(t *testing.T) {
	ts := newTestServer(t, mock.NewMockGenerator("u"))

	code, body := ts.do(t, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Equal(t, "NOT_IMPLEMENTED", body["code"])
}

func TestContract_SubmitAfterShutdown(t *testing.T) {
	ts := newTestServer(t, mock.NewMockGenerator("u"))
	require.NoError(t, ts.scheduler.Shutdown(context.Background()))

	code, body := ts.do(t, http.MethodPost, "/generate", `{"prompt":"late"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "SHUTTING_DOWN", body["code"])
}

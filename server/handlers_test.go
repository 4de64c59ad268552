package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManagementMO/dreamwell-assessment/agent/orchestrator"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
)

// fakeGenerator returns a canned result and records the request it saw.
type fakeGenerator struct {
	result orchestrator.Result
	err    error
	got    orchestrator.Request
}

func (f *fakeGenerator) Run(_ context.Context, req orchestrator.Request) (orchestrator.Result, error) {
	f.got = req
	return f.result, f.err
}

func newTestServer(t *testing.T, gen Generator) *Server {
	t.Helper()
	fixtures, err := store.NewFixtureStore()
	require.NoError(t, err)
	if gen == nil {
		gen = &fakeGenerator{result: orchestrator.Result{
			Status:   orchestrator.StateDone,
			Category: "response",
			Draft:    "Subject: Re: Collaboration\n\nThanks for reaching out.",
		}}
	}
	return New(Config{
		Threads:   fixtures,
		Brands:    fixtures,
		Generator: gen,
		Version:   "test",
	})
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListEmails(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodGet, "/emails?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	emails := data["emails"].([]any)
	assert.Len(t, emails, 2)
	assert.Equal(t, float64(2), data["total"])
}

func TestListEmailsInvalidLimit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodGet, "/emails?limit=zero", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	assert.Equal(t, "bad_request", env.Error.Code)
}

func TestGetEmail(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodGet, "/emails/thread_001", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	thread := env.Data.(map[string]any)
	assert.Equal(t, "thread_001", thread["thread_id"])
	assert.Equal(t, "Dana Okafor", thread["influencer_name"])
}

func TestGetEmailNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodGet, "/emails/thread_999", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, env.Success)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{result: orchestrator.Result{
		Status:     orchestrator.StateDone,
		Category:   "negotiation",
		Draft:      "Subject: Re: Collaboration\n\nLet's negotiate.",
		Iterations: 3,
	}}
	srv := newTestServer(t, gen)

	rec, env := doJSON(t, srv, http.MethodPost, "/generate", map[string]any{
		"thread_id": "thread_002",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "done", data["status"])
	assert.Equal(t, "negotiation", data["category"])

	// Brand defaults from the thread when the request omits it.
	assert.Equal(t, "thread_002", gen.got.Thread.ThreadID)
	assert.Equal(t, "ledgerly", gen.got.BrandID)
}

func TestGenerateDegradedRunIsStillSuccess(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{result: orchestrator.Result{
		Status:        orchestrator.StateFailed,
		Category:      "response",
		Draft:         "[could not complete: iteration limit reached before a draft was produced]",
		FailureReason: "reasoning service unavailable",
	}}
	srv := newTestServer(t, gen)

	rec, env := doJSON(t, srv, http.MethodPost, "/generate", map[string]any{
		"thread_id": "thread_001",
	})

	// Partial progress is a valid outcome; the envelope stays successful and
	// the payload carries the failure detail.
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "reasoning service unavailable", data["failure_reason"])
}

func TestGenerateUnknownThread(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodPost, "/generate", map[string]any{
		"thread_id": "thread_999",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestGenerateMissingThreadID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodPost, "/generate", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	assert.Equal(t, "bad_request", env.Error.Code)
}

func TestSendAppendsAndMarksProcessed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodPost, "/send", map[string]any{
		"thread_id": "thread_001",
		"content":   "Subject: Re: Collaboration\n\nWe'd love to move forward.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "processed", data["status"])
	assert.NotEmpty(t, data["sent_at"])

	// The reply is visible on a subsequent read.
	_, threadEnv := doJSON(t, srv, http.MethodGet, "/emails/thread_001", nil)
	thread := threadEnv.Data.(map[string]any)
	messages := thread["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	assert.Contains(t, last["body"], "move forward")
	assert.Equal(t, "processed", thread["status"])
}

func TestSendMissingFields(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec, env := doJSON(t, srv, http.MethodPost, "/send", map[string]any{
		"thread_id": "thread_001",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	gen := &panicGenerator{}
	srv := newTestServer(t, gen)

	rec, env := doJSON(t, srv, http.MethodPost, "/generate", map[string]any{
		"thread_id": "thread_001",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, env.Success)
	assert.Equal(t, "internal", env.Error.Code)
}

type panicGenerator struct{}

func (panicGenerator) Run(context.Context, orchestrator.Request) (orchestrator.Result, error) {
	panic("generator blew up")
}

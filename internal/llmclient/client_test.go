package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/resilience"
)

func newTestClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "llm-test", ConsecutiveFailures: 100, Cooldown: time.Minute}, zap.NewNop())
	cfg := Config{
		BaseURL:     baseURL,
		HTTPTimeout: time.Second,
		MaxAttempts: maxAttempts,
		Model:       "test-model",
		Temperature: 0.1,
		MaxTokens:   512,
	}
	return New(cfg, breaker, zap.NewNop())
}

type completionOut struct {
	FIO string `json:"fio"`
}

func TestComplete_SuccessExtractsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Errorf("expected the configured model to be sent, got %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": `{"fio":"Иванов Иван"}`})
	}))
	defer srv.Close()

	var out completionOut
	client := newTestClient(t, srv.URL, 3)
	if perr := client.Complete(context.Background(), "classify this", &out); perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if out.FIO != "Иванов Иван" {
		t.Fatalf("unexpected FIO: %q", out.FIO)
	}
}

func TestComplete_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": `{"fio":"ok"}`})
	}))
	defer srv.Close()

	var out completionOut
	client := newTestClient(t, srv.URL, 5)
	if perr := client.Complete(context.Background(), "classify this", &out); perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestComplete_NonRetryable4xxStopsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var out completionOut
	client := newTestClient(t, srv.URL, 5)
	perr := client.Complete(context.Background(), "classify this", &out)
	if perr == nil {
		t.Fatal("expected an error for a rejected request")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable rejection, got %d", calls)
	}
}

func TestComplete_InvalidPayloadReportsFilterParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": "not json at all, no braces"})
	}))
	defer srv.Close()

	var out completionOut
	client := newTestClient(t, srv.URL, 1)
	perr := client.Complete(context.Background(), "classify this", &out)
	if perr == nil || perr.Code != pipelineerr.CodeLLMFilterParseError {
		t.Fatalf("expected CodeLLMFilterParseError, got %v", perr)
	}
}

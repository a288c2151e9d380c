package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", ConsecutiveFailures: 2, Cooldown: time.Minute}, zap.NewNop())
	failing := func() (int, error) { return 0, errors.New("boom") }

	for i := 0; i < 2; i++ {
		_, _ = Execute(context.Background(), b, failing)
	}
	if b.State() != "open" {
		t.Fatalf("expected breaker to be open after 2 consecutive failures, got %q", b.State())
	}

	_, err := Execute(context.Background(), b, func() (int, error) {
		t.Fatal("fn must not be called while the breaker is open")
		return 0, nil
	})
	pe, ok := pipelineerr.As(err)
	if !ok {
		t.Fatalf("expected a pipeline error, got %v", err)
	}
	if pe.Code != pipelineerr.CodeServiceUnavailable {
		t.Fatalf("expected CodeServiceUnavailable, got %s", pe.Code)
	}
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", ConsecutiveFailures: 2, Cooldown: time.Minute}, zap.NewNop())
	result, err := Execute(context.Background(), b, func() (string, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result: %q", result)
	}
	if b.State() != "closed" {
		t.Fatalf("expected breaker to remain closed, got %q", b.State())
	}
}

func TestRegistry_States(t *testing.T) {
	reg := NewRegistry(
		BreakerConfig{Name: "ocr", ConsecutiveFailures: 5, Cooldown: time.Minute},
		BreakerConfig{Name: "llm", ConsecutiveFailures: 5, Cooldown: time.Minute},
		zap.NewNop(),
	)
	states := reg.States()
	if states["ocr"] != "closed" || states["llm"] != "closed" {
		t.Fatalf("expected both breakers closed initially, got %v", states)
	}
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

func TestNullableString(t *testing.T) {
	if got := nullableString(""); got != nil {
		t.Fatalf("expected nil for an empty string, got %v", got)
	}
	if got := nullableString("2025-01-01"); got != "2025-01-01" {
		t.Fatalf("expected the string back unchanged, got %v", got)
	}
}

func TestIsTransient_ContextErrors(t *testing.T) {
	if !isTransient(context.DeadlineExceeded) {
		t.Fatal("expected context.DeadlineExceeded to be treated as transient")
	}
	if !isTransient(context.Canceled) {
		t.Fatal("expected context.Canceled to be treated as transient")
	}
}

func TestIsTransient_PipelineErrorHonorsRetryableFlag(t *testing.T) {
	retryable := pipelineerr.Server(pipelineerr.CodeS3Error, true, nil)
	if !isTransient(retryable) {
		t.Fatal("expected a retryable pipeline error to be treated as transient")
	}

	permanent := pipelineerr.Business(pipelineerr.CodeFIOMismatch)
	if isTransient(permanent) {
		t.Fatal("expected a non-retryable pipeline error to not be treated as transient")
	}
}

func TestIsTransient_UnknownErrorDefaultsToTransient(t *testing.T) {
	if !isTransient(errors.New("connection reset")) {
		t.Fatal("expected an unrecognized error to default to transient, matching the teacher's conservative retry posture")
	}
}

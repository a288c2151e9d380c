// Package llmclient implements the synchronous JSON completion client used
// for document-type classification and field extraction (spec §4.4). The
// teacher's gemini.GeminiClient targets a different wire shape (per-task
// methods against the Google AI API); this client targets the spec's
// generic {Model, Content, Temperature, MaxTokens} completion endpoint, so
// the transport is newly authored, keeping the teacher's injected
// config+logger constructor idiom.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/envelope"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/resilience"
)

// Config holds the LLM client's tunables (spec §4.4).
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
	MaxAttempts int
	Model       string
	Temperature float64
	MaxTokens   int
}

// completionRequest is the fixed wire shape the spec requires.
type completionRequest struct {
	Model       string  `json:"Model"`
	Content     string  `json:"Content"`
	Temperature float64 `json:"Temperature"`
	MaxTokens   int     `json:"MaxTokens"`
}

// Client performs retried, circuit-breaker-guarded completions.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New builds a Client, wiring the shared LLM circuit breaker.
func New(cfg Config, breaker *resilience.Breaker, logger *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: breaker,
		logger:  logger.Named("llmclient"),
	}
}

// Complete sends prompt to the LLM, pulls the inner JSON payload out of the
// response envelope and unmarshals it into out. It returns nil on success and
// a typed pipeline error otherwise.
func (c *Client) Complete(ctx context.Context, prompt string, out interface{}) *pipelineerr.Error {
	const operation = "Client.Complete"

	policy := resilience.RetryPolicy{
		MaxAttempts:  c.cfg.MaxAttempts,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
	}

	raw, err := resilience.Execute(ctx, c.breaker, func() ([]byte, error) {
		return resilience.Do(ctx, policy, c.logger, operation, func(attempt int) ([]byte, bool, error) {
			body, retryable, callErr := c.call(ctx, prompt)
			return body, retryable, callErr
		})
	})
	if err != nil {
		if pe, ok := pipelineerr.As(err); ok {
			return pe
		}
		if ctx.Err() != nil {
			return pipelineerr.Server(pipelineerr.CodeLLMTimeout, true, ctx.Err())
		}
		return pipelineerr.Server(pipelineerr.CodeLLMFailed, true, err)
	}

	c.logger.Debug("llm raw response", zap.String("operation", operation), zap.ByteString("response_payload", raw))

	if ferr := envelope.ExtractLLMPayload(raw, out); ferr != nil {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, ferr)
	}
	return nil
}

func (c *Client) call(ctx context.Context, prompt string) ([]byte, bool, error) {
	reqBody, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Content:     prompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshaling completion request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, false, fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("calling llm: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("llm rate limited: %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("llm server error: %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("llm request rejected: %d", resp.StatusCode)
	}
}

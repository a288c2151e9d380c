// Package ocrclient implements the vendor-neutral two-phase OCR upload+poll
// protocol (spec §4.3). The teacher's GoogleVisionService (internal/ocr) is
// a single-call cloud SDK client; this protocol is shaped differently (HTTP
// upload+poll against a configured base URL), so the transport is newly
// authored over net/http, but keeps the teacher's debug-logging-of-raw-
// payloads idiom and operation-named structured log fields.
package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/envelope"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/resilience"
)

// Config holds the OCR client's tunables (spec §4.3).
type Config struct {
	BaseURL        string
	HTTPTimeout    time.Duration
	PollInterval   time.Duration
	PollCeiling    time.Duration
	MaxConcurrency int
}

var terminalDone = map[string]bool{"done": true, "completed": true, "success": true, "finished": true, "ready": true}
var terminalFailed = map[string]bool{"failed": true, "error": true}

// Client uploads documents for OCR and polls for results.
type Client struct {
	cfg       Config
	http    *http.Client
	sem     *resilience.Semaphore
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New builds a Client, wiring the shared OCR circuit breaker.
func New(cfg Config, breaker *resilience.Breaker, logger *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		sem:     resilience.NewSemaphore(cfg.MaxConcurrency),
		breaker: breaker,
		logger:  logger.Named("ocrclient"),
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

type pollResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// ExtractPages uploads pdfPath, polls until terminal, and returns the
// filtered per-page text (spec §4.3, §4.5).
func (c *Client) ExtractPages(ctx context.Context, pdfPath string) (envelope.OCRPages, *pipelineerr.Error) {
	const operation = "Client.ExtractPages"

	if err := c.sem.Acquire(ctx); err != nil {
		return envelope.OCRPages{}, pipelineerr.Server(pipelineerr.CodeOCRFailed, true, err)
	}
	defer c.sem.Release()

	raw, err := resilience.Execute(ctx, c.breaker, func() ([]byte, error) {
		return c.runUploadAndPoll(ctx, pdfPath)
	})
	if err != nil {
		if pe, ok := pipelineerr.As(err); ok {
			return envelope.OCRPages{}, pe
		}
		c.logger.Error("ocr extraction failed", zap.String("operation", operation), zap.Error(err))
		return envelope.OCRPages{}, pipelineerr.Server(pipelineerr.CodeOCRFailed, true, err)
	}

	c.logger.Debug("ocr raw response", zap.String("operation", operation), zap.ByteString("response_payload", raw))

	pages, ferr := envelope.FilterOCRResponse(raw)
	if ferr != nil {
		return envelope.OCRPages{}, pipelineerr.Server(pipelineerr.CodeOCRFailed, true, ferr)
	}
	if len(pages.Pages) == 0 {
		return envelope.OCRPages{}, pipelineerr.Server(pipelineerr.CodeOCREmptyPages, false, nil)
	}
	return pages, nil
}

func (c *Client) runUploadAndPoll(ctx context.Context, pdfPath string) ([]byte, error) {
	id, err := c.upload(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, id)
}

func (c *Client) upload(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copying pdf into form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/v2/pdf", &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading pdf: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var out uploadResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parsing upload response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) poll(ctx context.Context, id string) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.PollCeiling)
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		if time.Now().After(deadline) {
			return nil, pipelineerr.Server(pipelineerr.CodeOCRTimeout, true, nil)
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/v2/result/"+id, nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("building poll request: %w", err)
		}
		resp, err := c.http.Do(req)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("polling result: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err := classifyStatus(resp); err != nil {
			return nil, err
		}

		var parsed pollResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("parsing poll response: %w", err)
		}

		status := parsed.Status
		switch {
		case terminalDone[status]:
			if len(parsed.Result) > 0 {
				return parsed.Result, nil
			}
			return respBody, nil
		case terminalFailed[status]:
			return nil, pipelineerr.Server(pipelineerr.CodeOCRFailed, true, fmt.Errorf("ocr reported status %q", status))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// classifyStatus maps non-2xx responses to retryable or terminal failures
// (spec §4.3): 429 and 5xx are marked retryable, and a 429's Retry-After
// seconds are recorded on the error. The client itself neither retries nor
// waits for Retry-After; a failed call is returned to the caller as is.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return pipelineerr.Server(pipelineerr.CodeOCRFailed, true, fmt.Errorf("ocr service rate limited")).WithRetryAfter(retryAfter)
	}
	if resp.StatusCode >= 500 {
		return pipelineerr.Server(pipelineerr.CodeOCRFailed, true, fmt.Errorf("ocr service returned %d", resp.StatusCode))
	}
	return pipelineerr.Server(pipelineerr.CodeOCRFailed, false, fmt.Errorf("ocr service returned %d", resp.StatusCode))
}

func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

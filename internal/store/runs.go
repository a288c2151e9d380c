package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/resilience"
	"github.com/stackvity/loan-verify/internal/verify"
)

// WriterConfig controls the upsert's retry behavior (spec §4.10).
type WriterConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
}

// Writer persists one row per run, upserting by run_id so a repeated write
// for the same run overwrites its earlier row (spec §4.10). Each invocation
// gets a fresh run_id, so a redelivered request produces a new row.
type Writer struct {
	pool   *pgxpool.Pool
	cfg    WriterConfig
	logger *zap.Logger
}

// NewWriter builds a Writer over pool.
func NewWriter(pool *pgxpool.Pool, cfg WriterConfig, logger *zap.Logger) *Writer {
	return &Writer{pool: pool, cfg: cfg, logger: logger.Named("store")}
}

const upsertRunSQL = `
INSERT INTO verification_runs
	(run_id, trace_id, external_request_id, iin, verdict, status, errors, doc_type, doc_date, doc_date_end,
	 original_filename, byte_size, page_count, processing_time_seconds, stage_timings,
	 artifact_paths, failure_code, failure_category, failure_message, retryable, created_at, updated_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now(), now())
ON CONFLICT (run_id) DO UPDATE SET
	trace_id = EXCLUDED.trace_id,
	external_request_id = EXCLUDED.external_request_id,
	iin = EXCLUDED.iin,
	verdict = EXCLUDED.verdict,
	status = EXCLUDED.status,
	errors = EXCLUDED.errors,
	doc_type = EXCLUDED.doc_type,
	doc_date = EXCLUDED.doc_date,
	doc_date_end = EXCLUDED.doc_date_end,
	original_filename = EXCLUDED.original_filename,
	byte_size = EXCLUDED.byte_size,
	page_count = EXCLUDED.page_count,
	processing_time_seconds = EXCLUDED.processing_time_seconds,
	stage_timings = EXCLUDED.stage_timings,
	artifact_paths = EXCLUDED.artifact_paths,
	failure_code = EXCLUDED.failure_code,
	failure_category = EXCLUDED.failure_category,
	failure_message = EXCLUDED.failure_message,
	retryable = EXCLUDED.retryable,
	updated_at = now()
`

// SaveRun upserts result, retrying transient DB errors for at most
// cfg.MaxRetries attempts in total (spec §4.10). It never surfaces into the pipeline's success path:
// callers log a persistence failure but the run's verdict stands.
func (w *Writer) SaveRun(ctx context.Context, result verify.Result) error {
	const operation = "Writer.SaveRun"

	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("marshaling errors: %w", err)
	}
	timingsJSON, err := json.Marshal(result.StageTimings)
	if err != nil {
		return fmt.Errorf("marshaling stage timings: %w", err)
	}
	artifactsJSON, err := json.Marshal(result.ArtifactPaths)
	if err != nil {
		return fmt.Errorf("marshaling artifact paths: %w", err)
	}

	policy := resilience.RetryPolicy{
		MaxAttempts:  w.cfg.MaxRetries,
		InitialDelay: w.cfg.InitialDelay,
		Multiplier:   w.cfg.Multiplier,
		MaxDelay:     10 * time.Second,
	}

	var failureCode interface{}
	if result.FailureCode != nil {
		failureCode = string(*result.FailureCode)
	}
	var failureMessage interface{}
	if result.FailureMessage != nil {
		failureMessage = *result.FailureMessage
	}

	_, err = resilience.Do(ctx, policy, w.logger, operation, func(attempt int) (struct{}, bool, error) {
		_, execErr := w.pool.Exec(ctx, upsertRunSQL,
			result.RunID, result.TraceID, nullableString(result.ExternalRequestID), nullableString(result.IIN),
			result.Verdict, string(result.Status), errorsJSON,
			result.DocType, nullableString(result.DocDate), result.DocDateEnd,
			result.OriginalFilename, result.ByteSize, result.PageCount,
			result.ProcessingTimeSeconds, timingsJSON, artifactsJSON,
			failureCode, nullableString(string(result.FailureCategory)), failureMessage, result.Retryable,
		)
		if execErr == nil {
			return struct{}{}, false, nil
		}
		return struct{}{}, isTransient(execErr), execErr
	})
	if err != nil {
		w.logger.Error("persisting run failed", zap.String("operation", operation), zap.String("run_id", result.RunID), zap.Error(err))
		return fmt.Errorf("%s: %w", operation, err)
	}

	w.logger.Info("run persisted", zap.String("operation", operation), zap.String("run_id", result.RunID), zap.Bool("verdict", result.Verdict))
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isTransient classifies connection/timeout failures as retryable,
// distinct from constraint violations (SQLSTATE class 23) which are permanent.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var pe *pipelineerr.Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return false
	}
	return true
}

package verify

import (
	"time"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

// Status is the run's terminal classification (spec §4.1).
type Status string

const (
	StatusSuccess      Status = "success"
	StatusBusinessErr  Status = "business_error"
	StatusClientErr    Status = "client_error"
	StatusServerErr    Status = "server_error"
)

// Input is everything the orchestrator needs to start a run (spec §4.1,
// §5): a source reference, the declared identity, and run-scoped
// identifiers used across logging, persistence, and the HTTP response.
// ExternalRequestID and IIN are optional upstream correlation fields (spec
// §3 "Persistence row", §6 queue-driven invocation) distinct from RunID:
// each invocation gets its own RunID even when ExternalRequestID repeats.
type Input struct {
	RunID             string
	TraceID           string
	SourceKey         string
	OriginalFilename  string
	DeclaredFIO       string
	ExternalRequestID string
	IIN               string
}

// StageTiming records one stage's wall-clock duration (spec §4.1 "Timing").
type StageTiming struct {
	Stage   string
	Seconds float64
}

// Result is the single record the orchestrator produces and persists
// (spec §4.1, §4.10).
type Result struct {
	RunID             string
	TraceID           string
	ExternalRequestID string
	IIN               string

	Verdict bool
	Status  Status
	Errors  []pipelineerr.Code

	DocType    *string
	DocDate    string
	DocDateEnd *time.Time

	OriginalFilename      string
	ByteSize              int64
	PageCount             int
	ProcessingTimeSeconds float64
	StageTimings          []StageTiming
	ArtifactPaths         map[string]string

	FailureCode     *pipelineerr.Code
	FailureCategory pipelineerr.Category
	FailureMessage  *string
	Retryable       bool
}

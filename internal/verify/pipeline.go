package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/acquire"
	"github.com/stackvity/loan-verify/internal/envelope"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/secdelete"
)

// Fetcher retrieves the source file into a local path (spec §4.2).
type Fetcher interface {
	Fetch(ctx context.Context, key, workDir string) (FetchedFile, *pipelineerr.Error)
}

// FetchedFile is the subset of the object-store fetch result the pipeline
// needs (decoupled from the objectstore package to avoid an import cycle).
type FetchedFile struct {
	LocalPath string
}

// OCRClient extracts per-page text from an acquired PDF (spec §4.3).
type OCRClient interface {
	ExtractPages(ctx context.Context, pdfPath string) (envelope.OCRPages, *pipelineerr.Error)
}

// LLMClient runs one completion call, unmarshalling the envelope-extracted
// payload into out (spec §4.4).
type LLMClient interface {
	Complete(ctx context.Context, prompt string, out interface{}) *pipelineerr.Error
}

// Store persists exactly one row per run (spec §4.10). Failures here never
// surface into the pipeline's success path.
type Store interface {
	SaveRun(ctx context.Context, result Result) error
}

// Config bundles the orchestrator's tunables (spec §4.1, §9 retention note
// excluded — that lives in internal/retention).
type Config struct {
	WorkDir                string
	MaxPDFPages            int
	RunDeadline            time.Duration
	DefaultValidityDays    int
	DocTypeCheckPromptPath string
	ExtractPromptPath      string
	ArtifactWritingEnabled bool
	ArtifactDir            string
}

// docTypeCheckResponse is the schema validated after envelope extraction
// (spec §4.1 "Doc-type check").
type docTypeCheckResponse struct {
	DocType            *string `json:"doc_type"`
	SingleDocTypeValid bool    `json:"single_doc_type_valid"`
}

// extractResponse is the schema validated after envelope extraction (spec
// §4.1 "Extract"). Unknown fields are tolerated; only fio/doc_date feed the
// validator.
type extractResponse struct {
	FIO     string `json:"fio"`
	DocDate string `json:"doc_date"`
}

// Pipeline is the stage orchestrator (spec §4.1).
type Pipeline struct {
	cfg     Config
	fetcher Fetcher
	ocr     OCRClient
	llm     LLMClient
	store   Store
	logger  *zap.Logger
}

// New builds a Pipeline from its wired dependencies.
func New(cfg Config, fetcher Fetcher, ocr OCRClient, llm LLMClient, store Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, fetcher: fetcher, ocr: ocr, llm: llm, store: store, logger: logger.Named("pipeline")}
}

// Run executes acquire -> ocr -> doc_type_check -> extract ->
// validate_and_finalize in order, finalizing exactly once and persisting
// exactly one row (spec §4.1).
func (p *Pipeline) Run(ctx context.Context, in Input) Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RunDeadline)
	defer cancel()

	runStart := time.Now()
	workDir := filepath.Join(p.cfg.WorkDir, in.RunID)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return p.finalize(ctx, in, runStart, nil, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err), nil, nil)
	}
	defer func() {
		if err := secdelete.Dir(workDir, p.logger); err != nil {
			p.logger.Warn("scratch directory cleanup incomplete", zap.String("run_id", in.RunID), zap.Error(err))
		}
	}()

	acquired, timings, failure := p.runAcquire(ctx, in, workDir)
	if failure != nil {
		return p.finalizeWithTimeout(ctx, in, runStart, timings, failure, nil, nil)
	}

	pages, timings, failure := p.runOCR(ctx, timings, acquired)
	if failure != nil {
		return p.finalizeWithTimeout(ctx, in, runStart, timings, failure, acquired, nil)
	}

	dtc, timings, failure := p.runDocTypeCheck(ctx, timings, pages)
	if failure != nil {
		return p.finalizeWithTimeout(ctx, in, runStart, timings, failure, acquired, nil)
	}

	extracted, timings, failure := p.runExtract(ctx, timings, pages)
	if failure != nil {
		return p.finalizeWithTimeout(ctx, in, runStart, timings, failure, acquired, nil)
	}

	result, timings := p.runValidateAndFinalize(ctx, in, timings, acquired, dtc, extracted)
	return p.finalizeWithTimeout(ctx, in, runStart, timings, nil, acquired, &result)
}

func (p *Pipeline) runAcquire(ctx context.Context, in Input, workDir string) (*acquire.Result, []StageTiming, *pipelineerr.Error) {
	start := time.Now()
	const stage = "acquire"

	fetched, ferr := p.fetcher.Fetch(ctx, in.SourceKey, workDir)
	if ferr != nil {
		p.logStageError(in, stage, ferr)
		return nil, []StageTiming{{Stage: stage, Seconds: time.Since(start).Seconds()}}, ferr
	}

	acquired, aerr := acquire.Acquire(fetched.LocalPath, in.OriginalFilename, workDir, p.cfg.MaxPDFPages)
	timings := []StageTiming{{Stage: stage, Seconds: time.Since(start).Seconds()}}
	if aerr != nil {
		p.logStageError(in, stage, aerr)
		return nil, timings, aerr
	}
	return &acquired, timings, nil
}

func (p *Pipeline) runOCR(ctx context.Context, timings []StageTiming, acquired *acquire.Result) (envelope.OCRPages, []StageTiming, *pipelineerr.Error) {
	start := time.Now()
	const stage = "ocr"

	pages, perr := p.ocr.ExtractPages(ctx, acquired.PDFPath)
	timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
	if perr != nil {
		return envelope.OCRPages{}, timings, perr
	}
	return pages, timings, nil
}

func (p *Pipeline) runDocTypeCheck(ctx context.Context, timings []StageTiming, pages envelope.OCRPages) (docTypeCheckResponse, []StageTiming, *pipelineerr.Error) {
	start := time.Now()
	const stage = "doc_type_check"

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
		return docTypeCheckResponse{}, timings, pipelineerr.Server(pipelineerr.CodeDTCFailed, false, err)
	}

	prompt, err := loadPrompt(p.cfg.DocTypeCheckPromptPath, string(pagesJSON))
	if err != nil {
		timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
		return docTypeCheckResponse{}, timings, pipelineerr.Server(pipelineerr.CodeDTCFailed, false, err)
	}

	var resp docTypeCheckResponse
	if perr := p.llm.Complete(ctx, prompt, &resp); perr != nil {
		timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
		if perr.Code == pipelineerr.CodeLLMFilterParseError {
			return docTypeCheckResponse{}, timings, pipelineerr.Server(pipelineerr.CodeDTCParseError, false, perr)
		}
		return docTypeCheckResponse{}, timings, pipelineerr.Server(pipelineerr.CodeDTCFailed, perr.Retryable, perr)
	}
	timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})

	if !resp.SingleDocTypeValid {
		return resp, timings, pipelineerr.Client(pipelineerr.CodeMultipleDocuments, nil)
	}
	return resp, timings, nil
}

func (p *Pipeline) runExtract(ctx context.Context, timings []StageTiming, pages envelope.OCRPages) (extractResponse, []StageTiming, *pipelineerr.Error) {
	start := time.Now()
	const stage = "extract"

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
		return extractResponse{}, timings, pipelineerr.Server(pipelineerr.CodeExtractFailed, false, err)
	}

	prompt, err := loadPrompt(p.cfg.ExtractPromptPath, string(pagesJSON))
	if err != nil {
		timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
		return extractResponse{}, timings, pipelineerr.Server(pipelineerr.CodeExtractFailed, false, err)
	}

	var resp extractResponse
	perr := p.llm.Complete(ctx, prompt, &resp)
	timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})
	if perr != nil {
		if perr.Code == pipelineerr.CodeLLMFilterParseError {
			return extractResponse{}, timings, pipelineerr.Server(pipelineerr.CodeExtractSchemaInvalid, false, perr)
		}
		return extractResponse{}, timings, pipelineerr.Server(pipelineerr.CodeExtractFailed, perr.Retryable, perr)
	}
	return resp, timings, nil
}

func (p *Pipeline) runValidateAndFinalize(ctx context.Context, in Input, timings []StageTiming, acquired *acquire.Result, dtc docTypeCheckResponse, extracted extractResponse) (validateOutcome, []StageTiming) {
	start := time.Now()
	const stage = "validate_and_finalize"

	verdict := Validate(in.DeclaredFIO, ExtractedRecord{
		FIO:                extracted.FIO,
		DocType:            dtc.DocType,
		SingleDocTypeValid: dtc.SingleDocTypeValid,
		DocDate:            extracted.DocDate,
	}, p.cfg.DefaultValidityDays)

	timings = append(timings, StageTiming{Stage: stage, Seconds: time.Since(start).Seconds()})

	return validateOutcome{verdict: verdict, docType: dtc.DocType, docDate: extracted.DocDate}, timings
}

type validateOutcome struct {
	verdict Verdict
	docType *string
	docDate string
}

// finalizeWithTimeout checks whether the context deadline has already
// expired and, if so, replaces any in-flight failure with REQUEST_TIMEOUT
// (spec §5 "Cancellation").
func (p *Pipeline) finalizeWithTimeout(ctx context.Context, in Input, runStart time.Time, timings []StageTiming, failure *pipelineerr.Error, acquired *acquire.Result, outcome *validateOutcome) Result {
	if ctx.Err() != nil {
		failure = pipelineerr.Server(pipelineerr.CodeRequestTimeout, false, ctx.Err())
	}
	return p.finalize(ctx, in, runStart, timings, failure, acquired, outcome)
}

func (p *Pipeline) finalize(ctx context.Context, in Input, runStart time.Time, timings []StageTiming, failure *pipelineerr.Error, acquired *acquire.Result, outcome *validateOutcome) Result {
	result := Result{
		RunID:                 in.RunID,
		TraceID:               in.TraceID,
		ExternalRequestID:     in.ExternalRequestID,
		IIN:                   in.IIN,
		OriginalFilename:      in.OriginalFilename,
		StageTimings:          timings,
		ProcessingTimeSeconds: time.Since(runStart).Seconds(),
		ArtifactPaths:         map[string]string{},
	}
	if acquired != nil {
		result.ByteSize = acquired.ByteSize
		result.PageCount = acquired.PageCount
	}

	switch {
	case failure != nil:
		result.Verdict = false
		result.Errors = []pipelineerr.Code{failure.Code}
		result.FailureCode = &failure.Code
		result.FailureCategory = failure.Category
		message := failure.Message()
		result.FailureMessage = &message
		result.Retryable = failure.Retryable
		switch failure.Category {
		case pipelineerr.CategoryClient:
			result.Status = StatusClientErr
		case pipelineerr.CategoryBusiness:
			result.Status = StatusBusinessErr
		default:
			result.Status = StatusServerErr
		}
	case outcome != nil:
		result.Verdict = outcome.verdict.Verdict
		result.Errors = outcome.verdict.Errors
		result.DocType = outcome.docType
		result.DocDate = outcome.docDate
		result.DocDateEnd = outcome.verdict.DocDateEnd
		if result.Verdict {
			result.Status = StatusSuccess
		} else {
			result.Status = StatusBusinessErr
		}
	}

	if p.cfg.ArtifactWritingEnabled {
		if path, err := p.writeArtifact(in.RunID, result); err == nil {
			result.ArtifactPaths["result"] = path
		} else {
			p.logger.Warn("writing result artifact failed", zap.String("run_id", in.RunID), zap.Error(err))
		}
	}

	// ctx may already be past the run deadline here; the row is still written.
	if err := p.store.SaveRun(context.WithoutCancel(ctx), result); err != nil {
		p.logger.Error("persisting run failed after pipeline completion",
			zap.String("run_id", in.RunID), zap.String("trace_id", in.TraceID), zap.Error(err))
	}

	return result
}

func (p *Pipeline) writeArtifact(runID string, result Result) (string, error) {
	if err := os.MkdirAll(p.cfg.ArtifactDir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(p.cfg.ArtifactDir, runID+".json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Pipeline) logStageError(in Input, stage string, err *pipelineerr.Error) {
	p.logger.Error("stage failed",
		zap.String("run_id", in.RunID),
		zap.String("trace_id", in.TraceID),
		zap.String("stage", stage),
		zap.String("code", string(err.Code)),
		zap.String("category", string(err.Category)),
		zap.Error(err),
	)
}

// loadPrompt reads the prompt template at path and substitutes pagesJSON at
// the single `{}` placeholder (spec §4.1: "exactly one substitution").
func loadPrompt(path, pagesJSON string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt %s: %w", path, err)
	}
	template := string(raw)
	count := strings.Count(template, "{}")
	if count != 1 {
		return "", fmt.Errorf("prompt %s has %d `{}` placeholders, want exactly 1", path, count)
	}
	return strings.Replace(template, "{}", pagesJSON, 1), nil
}

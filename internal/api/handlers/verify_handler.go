// Package handlers implements the HTTP-facing handlers, adapted from the
// teacher's internal/api/handlers.FileHandler (file upload plumbing) and
// HealthHandler (health check shape), targeting this spec's verification
// endpoints instead of the teacher's patient-upload domain.
package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/httpproblem"
	"github.com/stackvity/loan-verify/internal/httputil"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/verify"
)

// VerifyHandler serves POST /v1/verify and POST /v1/kafka/verify (spec §6).
type VerifyHandler struct {
	pipeline  *verify.Pipeline
	uploadDir string
	maxUpload int64
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewVerifyHandler builds a VerifyHandler over pipeline.
func NewVerifyHandler(pipeline *verify.Pipeline, uploadDir string, maxUpload int64, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		pipeline:  pipeline,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		validate:  validator.New(),
		logger:    logger.Named("VerifyHandler"),
	}
}

type verifyResponse struct {
	RunID                 string       `json:"run_id"`
	Verdict               bool         `json:"verdict"`
	Errors                []errorEntry `json:"errors"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds"`
}

type errorEntry struct {
	Code    string  `json:"code"`
	Message *string `json:"message"`
}

// Upload handles POST /v1/verify: multipart file + fio form field (spec §6).
func (h *VerifyHandler) Upload(c *gin.Context) {
	const operation = "VerifyHandler.Upload"
	traceID := httputil.TraceID(c.Request.Context())

	if c.Request.ContentLength > h.maxUpload {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodePayloadTooLarge, nil), traceID)
		return
	}

	fio := strings.TrimSpace(c.PostForm("fio"))
	if fio == "" {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodeValidationError, fmt.Errorf("fio is required")), traceID)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodeValidationError, err), traceID)
		return
	}
	if fileHeader.Size > h.maxUpload {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodePayloadTooLarge, nil), traceID)
		return
	}

	runID := uuid.New().String()
	sourcePath, err := h.stageUpload(fileHeader, runID)
	if err != nil {
		h.logger.Error("staging upload failed", zap.String("operation", operation), zap.String("trace_id", traceID), zap.Error(err))
		h.respondProblem(c, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err), traceID)
		return
	}

	result := h.pipeline.Run(c.Request.Context(), verify.Input{
		RunID:            runID,
		TraceID:          traceID,
		SourceKey:        sourcePath,
		OriginalFilename: fileHeader.Filename,
		DeclaredFIO:      fio,
	})

	h.respondResult(c, result, traceID)
}

// kafkaVerifyRequest mirrors the queue-driven invocation body (spec §6).
type kafkaVerifyRequest struct {
	RequestID  int64       `json:"request_id" validate:"required"`
	S3Path     string      `json:"s3_path" validate:"required"`
	IIN        interface{} `json:"iin" validate:"required"`
	FirstName  string      `json:"first_name" validate:"required"`
	LastName   string      `json:"last_name" validate:"required"`
	SecondName *string     `json:"second_name"`
}

// Kafka handles POST /v1/kafka/verify (spec §6).
func (h *VerifyHandler) Kafka(c *gin.Context) {
	const operation = "VerifyHandler.Kafka"
	traceID := httputil.TraceID(c.Request.Context())

	var req kafkaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodeValidationError, err), traceID)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodeValidationError, err), traceID)
		return
	}

	var iin string
	switch v := req.IIN.(type) {
	case string:
		iin = strings.TrimSpace(v)
	case float64:
		iin = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if len(iin) != 12 || strings.Trim(iin, "0123456789") != "" {
		h.respondProblem(c, pipelineerr.Client(pipelineerr.CodeValidationError, fmt.Errorf("iin must be 12 digits")), traceID)
		return
	}

	fio := composeFIO(req.LastName, req.FirstName, req.SecondName)
	runID := uuid.New().String()

	result := h.pipeline.Run(c.Request.Context(), verify.Input{
		RunID:             runID,
		TraceID:           traceID,
		SourceKey:         req.S3Path,
		OriginalFilename:  req.S3Path,
		DeclaredFIO:       fio,
		ExternalRequestID: strconv.FormatInt(req.RequestID, 10),
		IIN:               iin,
	})

	h.logger.Info("kafka-driven verification completed", zap.String("operation", operation), zap.String("trace_id", traceID), zap.Int64("request_id", req.RequestID))
	h.respondResult(c, result, traceID)
}

func composeFIO(lastName, firstName string, secondName *string) string {
	parts := []string{lastName, firstName}
	if secondName != nil && strings.TrimSpace(*secondName) != "" {
		parts = append(parts, *secondName)
	}
	return strings.Join(parts, " ")
}

func (h *VerifyHandler) stageUpload(fileHeader *multipart.FileHeader, runID string) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening uploaded file: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(h.uploadDir, runID+filepath.Ext(fileHeader.Filename))
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("writing staged file: %w", err)
	}
	return destPath, nil
}

func (h *VerifyHandler) respondResult(c *gin.Context, result verify.Result, traceID string) {
	if result.FailureCode != nil && result.FailureCategory != pipelineerr.CategoryBusiness {
		h.respondProblem(c, pipelineerr.New(*result.FailureCode, result.FailureCategory, result.Retryable, nil), traceID)
		return
	}

	resp := verifyResponse{
		RunID:                 result.RunID,
		Verdict:               result.Verdict,
		ProcessingTimeSeconds: result.ProcessingTimeSeconds,
		Errors:                make([]errorEntry, 0, len(result.Errors)),
	}
	for _, code := range result.Errors {
		msg := pipelineerr.MessageFor(code)
		resp.Errors = append(resp.Errors, errorEntry{Code: string(code), Message: &msg})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VerifyHandler) respondProblem(c *gin.Context, pe *pipelineerr.Error, traceID string) {
	problem := httpproblem.FromError(pe, c.Request.URL.Path, traceID)
	c.JSON(httpproblem.StatusFor(pe), problem)
}

// Package httpproblem maps pipeline errors onto RFC-7807 application/problem+json
// responses and HTTP status codes, per the external interface contract.
package httpproblem

import (
	"net/http"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

// Problem is the RFC-7807 response body shape fixed by the spec.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	Code      string `json:"code"`
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
	TraceID   string `json:"trace_id"`
}

// statusByCode maps each client/server error code to its HTTP status.
var statusByCode = map[pipelineerr.Code]int{
	pipelineerr.CodeValidationError:      http.StatusUnprocessableEntity,
	pipelineerr.CodePDFTooManyPages:      http.StatusUnprocessableEntity,
	pipelineerr.CodeUnsupportedMediaType: http.StatusUnprocessableEntity,
	pipelineerr.CodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
	pipelineerr.CodeResourceNotFound:     http.StatusNotFound,
	pipelineerr.CodeMultipleDocuments:    http.StatusUnprocessableEntity,

	pipelineerr.CodeOCRFailed:            http.StatusBadGateway,
	pipelineerr.CodeOCREmptyPages:        http.StatusBadGateway,
	pipelineerr.CodeOCRTimeout:           http.StatusGatewayTimeout,
	pipelineerr.CodeLLMFailed:            http.StatusBadGateway,
	pipelineerr.CodeLLMTimeout:           http.StatusGatewayTimeout,
	pipelineerr.CodeLLMFilterParseError:  http.StatusBadGateway,
	pipelineerr.CodeDTCFailed:            http.StatusBadGateway,
	pipelineerr.CodeDTCParseError:        http.StatusBadGateway,
	pipelineerr.CodeExtractFailed:        http.StatusBadGateway,
	pipelineerr.CodeExtractSchemaInvalid: http.StatusBadGateway,
	pipelineerr.CodeS3Error:              http.StatusBadGateway,
	pipelineerr.CodeFileSaveFailed:       http.StatusInternalServerError,
	pipelineerr.CodeValidationFailed:     http.StatusInternalServerError,
	pipelineerr.CodeServiceUnavailable:   http.StatusServiceUnavailable,
	pipelineerr.CodeRequestTimeout:       http.StatusGatewayTimeout,
	pipelineerr.CodeInternalError:        http.StatusInternalServerError,
}

var titleByCategory = map[pipelineerr.Category]string{
	pipelineerr.CategoryClient: "Request could not be processed",
	pipelineerr.CategoryServer: "Upstream or internal failure",
}

// StatusFor returns the HTTP status code for a pipeline error, defaulting to
// 500 for an unrecognized code (should not happen for a well-formed Error).
func StatusFor(e *pipelineerr.Error) int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError builds the RFC-7807 body for a pipeline error at the given request
// instance path, with the current trace id.
func FromError(e *pipelineerr.Error, instance, traceID string) Problem {
	status := StatusFor(e)
	return Problem{
		Type:      "about:blank",
		Title:     titleByCategory[e.Category],
		Status:    status,
		Detail:    e.Message(),
		Instance:  instance,
		Code:      string(e.Code),
		Category:  string(e.Category),
		Retryable: e.Retryable,
		TraceID:   traceID,
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/envelope"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/verify"
)

type stubFetcher struct{ data []byte }

func (s *stubFetcher) Fetch(ctx context.Context, key, workDir string) (verify.FetchedFile, *pipelineerr.Error) {
	path := filepath.Join(workDir, "staged.pdf")
	if err := os.WriteFile(path, s.data, 0o600); err != nil {
		return verify.FetchedFile{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err)
	}
	return verify.FetchedFile{LocalPath: path}, nil
}

type stubOCR struct{}

func (s *stubOCR) ExtractPages(ctx context.Context, pdfPath string) (envelope.OCRPages, *pipelineerr.Error) {
	return envelope.OCRPages{Pages: []envelope.OCRPage{{PageNumber: 1, Text: "body"}}}, nil
}

type stubLLM struct{ calls int }

// Complete fakes both completion calls the pipeline makes: the prompt text
// itself (loaded from dtc.txt or extract.txt in newTestHandler) tells us
// which stage is asking, since the two response schemas are unexported
// types in the verify package and can't be type-switched on from here.
func (s *stubLLM) Complete(ctx context.Context, prompt string, out interface{}) *pipelineerr.Error {
	s.calls++

	var payload []byte
	switch {
	case bytes.HasPrefix([]byte(prompt), []byte("classify:")):
		payload = []byte(`{"doc_type":"certificate_of_illness","single_doc_type_valid":true}`)
	case bytes.HasPrefix([]byte(prompt), []byte("extract:")):
		payload = []byte(`{"fio":"Иванов Иван Иванович","doc_date":"2099-01-01"}`)
	default:
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, nil)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, err)
	}
	return nil
}

type stubStore struct{ saved []verify.Result }

func (s *stubStore) SaveRun(ctx context.Context, result verify.Result) error {
	s.saved = append(s.saved, result)
	return nil
}

func minimalPDF() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type/Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type/Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type/Page /Parent 2 0 R >>\nendobj\n" +
		"trailer\n<< /Size 4 /Root 1 0 R >>\n%%EOF")
}

func newTestHandler(t *testing.T) (*VerifyHandler, *stubStore) {
	t.Helper()
	promptDir := t.TempDir()
	dtcPrompt := filepath.Join(promptDir, "dtc.txt")
	extractPrompt := filepath.Join(promptDir, "extract.txt")
	_ = os.WriteFile(dtcPrompt, []byte("classify: {}"), 0o600)
	_ = os.WriteFile(extractPrompt, []byte("extract: {}"), 0o600)

	store := &stubStore{}
	pipeline := verify.New(verify.Config{
		WorkDir:                t.TempDir(),
		MaxPDFPages:            5,
		RunDeadline:            5 * time.Second,
		DefaultValidityDays:    40,
		DocTypeCheckPromptPath: dtcPrompt,
		ExtractPromptPath:      extractPrompt,
	}, &stubFetcher{data: minimalPDF()}, &stubOCR{}, &stubLLM{}, store, zap.NewNop())

	return NewVerifyHandler(pipeline, t.TempDir(), 10<<20, zap.NewNop()), store
}

func TestUpload_SuccessfulVerification(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newTestHandler(t)
	r := gin.New()
	r.POST("/v1/verify", handler.Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("fio", "Иванов Иван Иванович")
	part, _ := mw.CreateFormFile("file", "application.pdf")
	_, _ = part.Write(minimalPDF())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one persisted run, got %d", len(store.saved))
	}
}

func TestUpload_MissingFIOReturnsValidationProblem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/v1/verify", handler.Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "application.pdf")
	_, _ = part.Write(minimalPDF())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_MissingFileReturnsValidationProblem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/v1/verify", handler.Upload)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("fio", "Иванов Иван Иванович")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestKafka_RequiredFieldsValidated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/v1/kafka/verify", handler.Kafka)

	req := httptest.NewRequest(http.MethodPost, "/v1/kafka/verify", bytes.NewReader([]byte(`{"request_id":1}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a request missing required fields, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestKafka_ResubmittingSameRequestIDYieldsDistinctRunIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newTestHandler(t)
	r := gin.New()
	r.POST("/v1/kafka/verify", handler.Kafka)

	body := []byte(`{"request_id":42,"s3_path":"documents/42.pdf","iin":123456789012,"first_name":"Иван","last_name":"Иванов"}`)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/kafka/verify", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	if len(store.saved) != 2 {
		t.Fatalf("expected two persisted runs for two submissions of the same request_id, got %d", len(store.saved))
	}
	if store.saved[0].RunID == store.saved[1].RunID {
		t.Fatalf("expected distinct run ids, both were %q", store.saved[0].RunID)
	}
	for _, run := range store.saved {
		if run.ExternalRequestID != "42" {
			t.Fatalf("expected external_request_id to be threaded through, got %q", run.ExternalRequestID)
		}
	}
}

func TestComposeFIO(t *testing.T) {
	if got := composeFIO("Иванов", "Иван", nil); got != "Иванов Иван" {
		t.Fatalf("unexpected compose result: %q", got)
	}
	second := "Иванович"
	if got := composeFIO("Иванов", "Иван", &second); got != "Иванов Иван Иванович" {
		t.Fatalf("unexpected compose result with patronymic: %q", got)
	}
}

package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/envelope"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

type fakeFetcher struct {
	data []byte
	name string
	err  *pipelineerr.Error
}

func (f *fakeFetcher) Fetch(ctx context.Context, key, workDir string) (FetchedFile, *pipelineerr.Error) {
	if f.err != nil {
		return FetchedFile{}, f.err
	}
	path := filepath.Join(workDir, "source")
	if err := os.WriteFile(path, f.data, 0o600); err != nil {
		return FetchedFile{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err)
	}
	return FetchedFile{LocalPath: path}, nil
}

type fakeOCR struct {
	pages envelope.OCRPages
	err   *pipelineerr.Error
}

func (f *fakeOCR) ExtractPages(ctx context.Context, pdfPath string) (envelope.OCRPages, *pipelineerr.Error) {
	return f.pages, f.err
}

type fakeLLM struct {
	// responses is consumed in call order: doc_type_check first, then extract.
	responses []interface{}
	errs      []*pipelineerr.Error
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, out interface{}) *pipelineerr.Error {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	if i >= len(f.responses) {
		return pipelineerr.Server(pipelineerr.CodeLLMFailed, false, nil)
	}
	switch v := f.responses[i].(type) {
	case docTypeCheckResponse:
		ptr := out.(*docTypeCheckResponse)
		*ptr = v
	case extractResponse:
		ptr := out.(*extractResponse)
		*ptr = v
	}
	return nil
}

type fakeStore struct {
	saved []Result
}

func (f *fakeStore) SaveRun(ctx context.Context, result Result) error {
	f.saved = append(f.saved, result)
	return nil
}

func minimalPDFFixture() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type/Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type/Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type/Page /Parent 2 0 R >>\nendobj\n" +
		"trailer\n<< /Size 4 /Root 1 0 R >>\n%%EOF")
}

func newTestPipeline(t *testing.T, ocr OCRClient, llm LLMClient, store Store) *Pipeline {
	t.Helper()
	promptDir := t.TempDir()
	dtcPrompt := filepath.Join(promptDir, "dtc.txt")
	extractPrompt := filepath.Join(promptDir, "extract.txt")
	if err := os.WriteFile(dtcPrompt, []byte("classify: {}"), 0o600); err != nil {
		t.Fatalf("writing dtc prompt fixture: %v", err)
	}
	if err := os.WriteFile(extractPrompt, []byte("extract: {}"), 0o600); err != nil {
		t.Fatalf("writing extract prompt fixture: %v", err)
	}

	cfg := Config{
		WorkDir:                t.TempDir(),
		MaxPDFPages:            5,
		RunDeadline:            5 * time.Second,
		DefaultValidityDays:    40,
		DocTypeCheckPromptPath: dtcPrompt,
		ExtractPromptPath:      extractPrompt,
	}
	fetcher := &fakeFetcher{data: minimalPDFFixture(), name: "application.pdf"}
	return New(cfg, fetcher, ocr, llm, store, zap.NewNop())
}

func TestPipeline_Run_SuccessfulVerification(t *testing.T) {
	docType := "certificate_of_illness"
	llm := &fakeLLM{responses: []interface{}{
		docTypeCheckResponse{DocType: &docType, SingleDocTypeValid: true},
		extractResponse{FIO: "Иванов Иван Иванович", DocDate: "01.01.2099"},
	}}
	store := &fakeStore{}
	ocr := &fakeOCR{pages: envelope.OCRPages{Pages: []envelope.OCRPage{{PageNumber: 1, Text: "body"}}}}
	p := newTestPipeline(t, ocr, llm, store)

	result := p.Run(context.Background(), Input{
		RunID:            "run-1",
		TraceID:          "trace-1",
		SourceKey:        "s3://bucket/key",
		OriginalFilename: "application.pdf",
		DeclaredFIO:      "Иванов Иван Иванович",
	})

	if !result.Verdict {
		t.Fatalf("expected a successful verdict, got errors %v", result.Errors)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected StatusSuccess, got %s", result.Status)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one persisted run, got %d", len(store.saved))
	}
	if len(result.StageTimings) != 5 {
		t.Fatalf("expected all 5 stages timed, got %d: %+v", len(result.StageTimings), result.StageTimings)
	}
	if _, err := os.Stat(filepath.Join(p.cfg.WorkDir, "run-1")); !os.IsNotExist(err) {
		t.Fatal("expected the run's scratch work directory to be removed after completion")
	}
}

func TestPipeline_Run_OCRFailureStopsPipelineEarly(t *testing.T) {
	llm := &fakeLLM{}
	store := &fakeStore{}
	ocr := &fakeOCR{err: pipelineerr.Server(pipelineerr.CodeOCRFailed, true, nil)}
	p := newTestPipeline(t, ocr, llm, store)

	result := p.Run(context.Background(), Input{
		RunID:            "run-2",
		TraceID:          "trace-2",
		SourceKey:        "s3://bucket/key",
		OriginalFilename: "application.pdf",
		DeclaredFIO:      "Иванов Иван Иванович",
	})

	if result.Verdict {
		t.Fatal("expected verdict false on OCR failure")
	}
	if result.Status != StatusServerErr {
		t.Fatalf("expected StatusServerErr, got %s", result.Status)
	}
	if result.FailureCode == nil || *result.FailureCode != pipelineerr.CodeOCRFailed {
		t.Fatalf("expected FailureCode CodeOCRFailed, got %v", result.FailureCode)
	}
	if llm.calls != 0 {
		t.Fatalf("expected the LLM to never be called once OCR fails, got %d calls", llm.calls)
	}
	if len(result.StageTimings) != 2 {
		t.Fatalf("expected only acquire+ocr timed, got %d: %+v", len(result.StageTimings), result.StageTimings)
	}
}

func TestPipeline_Run_MultipleDocumentsStopsAtDocTypeCheck(t *testing.T) {
	llm := &fakeLLM{responses: []interface{}{
		docTypeCheckResponse{SingleDocTypeValid: false},
	}}
	store := &fakeStore{}
	ocr := &fakeOCR{pages: envelope.OCRPages{Pages: []envelope.OCRPage{{PageNumber: 1, Text: "body"}}}}
	p := newTestPipeline(t, ocr, llm, store)

	result := p.Run(context.Background(), Input{
		RunID:            "run-3",
		TraceID:          "trace-3",
		SourceKey:        "s3://bucket/key",
		OriginalFilename: "application.pdf",
		DeclaredFIO:      "Иванов Иван Иванович",
	})

	if result.FailureCode == nil || *result.FailureCode != pipelineerr.CodeMultipleDocuments {
		t.Fatalf("expected CodeMultipleDocuments, got %v", result.FailureCode)
	}
	if result.Status != StatusClientErr {
		t.Fatalf("expected StatusClientErr, got %s", result.Status)
	}
	if llm.calls != 1 {
		t.Fatalf("expected the extract stage to never run, got %d LLM calls", llm.calls)
	}
}

func TestPipeline_Run_ValidationFailureStillPersistsOneRow(t *testing.T) {
	docType := "certificate_of_illness"
	llm := &fakeLLM{responses: []interface{}{
		docTypeCheckResponse{DocType: &docType, SingleDocTypeValid: true},
		extractResponse{FIO: "Петров Пётр Петрович", DocDate: "01.01.2099"},
	}}
	store := &fakeStore{}
	ocr := &fakeOCR{pages: envelope.OCRPages{Pages: []envelope.OCRPage{{PageNumber: 1, Text: "body"}}}}
	p := newTestPipeline(t, ocr, llm, store)

	result := p.Run(context.Background(), Input{
		RunID:            "run-4",
		TraceID:          "trace-4",
		SourceKey:        "s3://bucket/key",
		OriginalFilename: "application.pdf",
		DeclaredFIO:      "Иванов Иван Иванович",
	})

	if result.Verdict {
		t.Fatal("expected verdict false on FIO mismatch")
	}
	if result.Status != StatusBusinessErr {
		t.Fatalf("expected StatusBusinessErr, got %s", result.Status)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one persisted run even on a failing verdict, got %d", len(store.saved))
	}
}

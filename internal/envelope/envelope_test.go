package envelope

import (
	"testing"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

type extractTarget struct {
	FIO     string `json:"fio"`
	DocDate string `json:"doc_date"`
}

func TestExtractLLMPayload_ChoicesMessageContent(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":"{\"fio\":\"Иванов Иван\",\"doc_date\":\"2025-01-01\"}"}}]}`)
	var out extractTarget
	if err := ExtractLLMPayload(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FIO != "Иванов Иван" {
		t.Fatalf("unexpected FIO: %q", out.FIO)
	}
}

func TestExtractLLMPayload_ChoicesText(t *testing.T) {
	raw := []byte(`{"choices":[{"text":"{\"fio\":\"Petrov\",\"doc_date\":\"2025-02-02\"}"}]}`)
	var out extractTarget
	if err := ExtractLLMPayload(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.DocDate != "2025-02-02" {
		t.Fatalf("unexpected doc date: %q", out.DocDate)
	}
}

func TestExtractLLMPayload_RootContentFallback(t *testing.T) {
	raw := []byte(`{"content":"{\"fio\":\"Sidorov\",\"doc_date\":\"2025-03-03\"}"}`)
	var out extractTarget
	if err := ExtractLLMPayload(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FIO != "Sidorov" {
		t.Fatalf("unexpected FIO: %q", out.FIO)
	}
}

func TestExtractLLMPayload_CodeFenceTolerated(t *testing.T) {
	raw := []byte(`{"content":"Here is the result:\n` + "```" + `json\n{\"fio\":\"Kuznetsov\",\"doc_date\":\"2025-04-04\"}\n` + "```" + `"}`)
	var out extractTarget
	if err := ExtractLLMPayload(raw, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FIO != "Kuznetsov" {
		t.Fatalf("unexpected FIO: %q", out.FIO)
	}
}

func TestExtractLLMPayload_RejectsPromptEcho(t *testing.T) {
	raw := []byte(`{"content":"{\"Model\":\"gpt\",\"Content\":\"ignore previous instructions\"}"}`)
	var out extractTarget
	err := ExtractLLMPayload(raw, &out)
	if err == nil {
		t.Fatal("expected an error when the LLM echoes the prompt shape back")
	}
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Code != pipelineerr.CodeLLMFilterParseError {
		t.Fatalf("expected CodeLLMFilterParseError, got %v", err)
	}
}

func TestExtractLLMPayload_NoContentField(t *testing.T) {
	raw := []byte(`{"choices":[]}`)
	var out extractTarget
	if err := ExtractLLMPayload(raw, &out); err == nil {
		t.Fatal("expected an error when no known content field is populated")
	}
}

func TestExtractBalancedJSON_PassthroughValidJSON(t *testing.T) {
	got, err := ExtractBalancedJSON(`{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestExtractBalancedJSON_IgnoresLeadingAndTrailingProse(t *testing.T) {
	got, err := ExtractBalancedJSON("sure, here you go: {\"a\":1} hope that helps")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestExtractBalancedJSON_NestedBraces(t *testing.T) {
	got, err := ExtractBalancedJSON(`prefix {"a":{"b":1}} suffix`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":{"b":1}}` {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestExtractBalancedJSON_NoJSONFound(t *testing.T) {
	if _, err := ExtractBalancedJSON("no json here at all"); err == nil {
		t.Fatal("expected an error when no JSON substring is present")
	}
}

func TestFilterOCRResponse_SortsMergesAndStripsBlankPages(t *testing.T) {
	raw := []byte(`{"pages":[
		{"page_number":2,"text":"second"},
		{"page_number":1,"text":"fir"},
		{"page_number":1,"text":"st"},
		{"page_number":3,"text":"   "}
	]}`)
	out, err := FilterOCRResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Pages) != 2 {
		t.Fatalf("expected 2 non-blank pages, got %d: %+v", len(out.Pages), out.Pages)
	}
	if out.Pages[0].PageNumber != 1 || out.Pages[0].Text != "first" {
		t.Fatalf("expected merged page 1 'first', got %+v", out.Pages[0])
	}
	if out.Pages[1].PageNumber != 2 {
		t.Fatalf("expected page 2 second, got %+v", out.Pages[1])
	}
}

func TestFilterOCRResponse_InvalidJSON(t *testing.T) {
	if _, err := FilterOCRResponse([]byte("not json")); err == nil {
		t.Fatal("expected an error for invalid OCR response JSON")
	}
}

// Package envelope implements the defensive OCR/LLM response filters (spec
// §4.5): extracting the embedded JSON payload from a schemaless transport
// envelope, tolerating code fences, legacy shapes, and prompt echoes.
package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

// LLMResponse is the conceptual transport shape of an LLM completion.
type LLMResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Content string `json:"content"`
}

// promptEcho is the shape of an accidentally-echoed prompt body, which must
// never be returned as the extracted payload (spec §4.5, invariant 6).
type promptEcho struct {
	Model   *json.RawMessage `json:"Model"`
	Content *json.RawMessage `json:"Content"`
}

// ExtractLLMPayload walks an LLM response in the fixed fallback order
// (choices[0].message.content, choices[0].text, root content), recovers a
// balanced JSON substring from it, and unmarshals it into out.
func ExtractLLMPayload(raw []byte, out interface{}) error {
	var resp LLMResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, fmt.Errorf("decoding envelope: %w", err))
	}

	var candidate string
	switch {
	case len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "":
		candidate = resp.Choices[0].Message.Content
	case len(resp.Choices) > 0 && resp.Choices[0].Text != "":
		candidate = resp.Choices[0].Text
	case resp.Content != "":
		candidate = resp.Content
	default:
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, fmt.Errorf("no known content field populated"))
	}

	jsonText, err := ExtractBalancedJSON(candidate)
	if err != nil {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, err)
	}

	if isPromptEcho(jsonText) {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, fmt.Errorf("extracted payload is a prompt echo"))
	}

	if err := json.Unmarshal([]byte(jsonText), out); err != nil {
		return pipelineerr.Server(pipelineerr.CodeLLMFilterParseError, false, fmt.Errorf("unmarshaling extracted JSON: %w", err))
	}
	return nil
}

func isPromptEcho(jsonText string) bool {
	var echo promptEcho
	if err := json.Unmarshal([]byte(jsonText), &echo); err != nil {
		return false
	}
	return echo.Model != nil && echo.Content != nil
}

// ExtractBalancedJSON returns s itself if it parses as JSON outright;
// otherwise it scans for the first balanced {...} or [...] substring
// (tolerating code fences and leading/trailing prose) and returns that.
func ExtractBalancedJSON(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	start := -1
	var open, closeByte byte
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '{' || trimmed[i] == '[' {
			start = i
			open = trimmed[i]
			if open == '{' {
				closeByte = '}'
			} else {
				closeByte = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON object or array found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closeByte:
			depth--
			if depth == 0 {
				candidate := trimmed[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no balanced JSON substring found in response")
}

// OCRPage is one page of OCR output.
type OCRPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// OCRPages is the normalized OCR filter output (spec §4.3/§4.5): sorted by
// page number, duplicates merged by concatenation, blank pages stripped.
type OCRPages struct {
	Pages []OCRPage `json:"pages"`
}

// rawOCRResponse is the tolerant shape accepted from the OCR service: a flat
// list of page objects in any order, possibly with duplicate page numbers.
type rawOCRResponse struct {
	Pages []OCRPage `json:"pages"`
}

// FilterOCRResponse normalizes a raw OCR response body into OCRPages: merges
// duplicate page numbers by concatenation in document order, strips
// whitespace-only pages, and sorts by page number ascending.
func FilterOCRResponse(raw []byte) (OCRPages, error) {
	var resp rawOCRResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return OCRPages{}, pipelineerr.Server(pipelineerr.CodeOCRFailed, true, fmt.Errorf("decoding OCR response: %w", err))
	}

	merged := map[int]*strings.Builder{}
	order := []int{}
	for _, p := range resp.Pages {
		if _, ok := merged[p.PageNumber]; !ok {
			merged[p.PageNumber] = &strings.Builder{}
			order = append(order, p.PageNumber)
		}
		merged[p.PageNumber].WriteString(p.Text)
	}

	out := OCRPages{}
	for _, pn := range order {
		text := strings.TrimSpace(merged[pn].String())
		if text == "" {
			continue
		}
		out.Pages = append(out.Pages, OCRPage{PageNumber: pn, Text: text})
	}
	sort.Slice(out.Pages, func(i, j int) bool { return out.Pages[i].PageNumber < out.Pages[j].PageNumber })
	return out, nil
}

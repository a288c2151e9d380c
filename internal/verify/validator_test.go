package verify

import (
	"testing"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

func strPtr(s string) *string { return &s }

func TestValidate_AllChecksPass(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Иванов Иван Иванович",
		DocType:            strPtr("certificate_of_illness"),
		SingleDocTypeValid: true,
		DocDate:            farFutureDocDate(),
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if !v.Verdict {
		t.Fatalf("expected verdict true, got errors %v", v.Errors)
	}
	if len(v.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", v.Errors)
	}
}

func TestValidate_FIOMismatchRecorded(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Петров Пётр Петрович",
		DocType:            strPtr("certificate_of_illness"),
		SingleDocTypeValid: true,
		DocDate:            farFutureDocDate(),
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if v.Verdict {
		t.Fatal("expected verdict false on FIO mismatch")
	}
	if !containsCode(v.Errors, pipelineerr.CodeFIOMismatch) {
		t.Fatalf("expected FIO_MISMATCH in errors, got %v", v.Errors)
	}
}

func TestValidate_UnknownDocType(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Иванов Иван Иванович",
		DocType:            strPtr("passport"),
		SingleDocTypeValid: true,
		DocDate:            farFutureDocDate(),
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if !containsCode(v.Errors, pipelineerr.CodeDocTypeUnknown) {
		t.Fatalf("expected DOC_TYPE_UNKNOWN in errors, got %v", v.Errors)
	}
}

func TestValidate_MultipleDocTypes(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Иванов Иван Иванович",
		DocType:            strPtr("certificate_of_illness"),
		SingleDocTypeValid: false,
		DocDate:            farFutureDocDate(),
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if !containsCode(v.Errors, pipelineerr.CodeMultipleDocTypes) {
		t.Fatalf("expected MULTIPLE_DOC_TYPES in errors, got %v", v.Errors)
	}
}

func TestValidate_DocDateMissing(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Иванов Иван Иванович",
		DocType:            strPtr("certificate_of_illness"),
		SingleDocTypeValid: true,
		DocDate:            "not a date",
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if !containsCode(v.Errors, pipelineerr.CodeDocDateMissing) {
		t.Fatalf("expected DOC_DATE_MISSING in errors, got %v", v.Errors)
	}
	if v.DocDateEnd != nil {
		t.Fatal("expected no validity window when doc date is unparseable")
	}
}

func TestValidate_DocDateTooOld(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Иванов Иван Иванович",
		DocType:            strPtr("certificate_of_illness"),
		SingleDocTypeValid: true,
		DocDate:            "2000-01-01",
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	if !containsCode(v.Errors, pipelineerr.CodeDocDateTooOld) {
		t.Fatalf("expected DOC_DATE_TOO_OLD in errors, got %v", v.Errors)
	}
	if v.DocDateValid {
		t.Fatal("expected DocDateValid false")
	}
}

func TestValidate_AccumulatesMultipleFailuresInOrder(t *testing.T) {
	rec := ExtractedRecord{
		FIO:                "Петров Пётр Петрович",
		DocType:            nil,
		SingleDocTypeValid: false,
		DocDate:            "not a date",
	}
	v := Validate("Иванов Иван Иванович", rec, 40)
	want := []pipelineerr.Code{
		pipelineerr.CodeFIOMismatch,
		pipelineerr.CodeDocTypeUnknown,
		pipelineerr.CodeMultipleDocTypes,
		pipelineerr.CodeDocDateMissing,
	}
	if len(v.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), v.Errors)
	}
	for i, code := range want {
		if v.Errors[i] != code {
			t.Fatalf("expected error %d to be %s, got %s", i, code, v.Errors[i])
		}
	}
}

func containsCode(codes []pipelineerr.Code, target pipelineerr.Code) bool {
	for _, c := range codes {
		if c == target {
			return true
		}
	}
	return false
}

func farFutureDocDate() string {
	return "01.01.2099"
}



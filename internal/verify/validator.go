// Package verify implements the business-rule validator and the run
// orchestrator that drives the stage pipeline (spec §4.1, §4.8).
package verify

import (
	"time"

	"github.com/stackvity/loan-verify/internal/doctype"
	"github.com/stackvity/loan-verify/internal/fio"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/validity"
)

// ExtractedRecord is the merged doc-type-check + extract output the
// validator checks against the declared FIO.
type ExtractedRecord struct {
	FIO                string
	DocType            *string
	SingleDocTypeValid bool
	DocDate            string
}

// Verdict is the validator's full output: the overall pass/fail and the
// ordered, deduplicated list of failing checks (spec §4.8).
type Verdict struct {
	Verdict bool
	Errors  []pipelineerr.Code

	DocDateEnd   *time.Time
	DocDateValid bool
}

// Validate runs the fixed ordered checks against the declared FIO and the
// merged extraction record and never raises: every outcome, including
// unparseable or missing data, is encoded in the returned Verdict.
func Validate(declaredFIO string, rec ExtractedRecord, defaultValidityDays int) Verdict {
	var errs []pipelineerr.Code
	seen := make(map[pipelineerr.Code]bool)
	add := func(code pipelineerr.Code) {
		if !seen[code] {
			seen[code] = true
			errs = append(errs, code)
		}
	}

	if matched, err := fio.Match(declaredFIO, rec.FIO); !matched {
		if err != nil {
			add(err.Code)
		}
	}

	if rec.DocType == nil || !doctype.Known(*rec.DocType) {
		add(pipelineerr.CodeDocTypeUnknown)
	}

	if !rec.SingleDocTypeValid {
		add(pipelineerr.CodeMultipleDocTypes)
	}

	var v Verdict
	docDate, ok := validity.ParseDocDate(rec.DocDate)
	if !ok {
		add(pipelineerr.CodeDocDateMissing)
	} else {
		docType := ""
		if rec.DocType != nil {
			docType = *rec.DocType
		}
		end, valid := validity.Window(docType, docDate, defaultValidityDays)
		v.DocDateEnd = &end
		v.DocDateValid = valid
		if !valid {
			add(pipelineerr.CodeDocDateTooOld)
		}
	}

	v.Errors = errs
	v.Verdict = len(errs) == 0
	return v
}

package fio

import "github.com/stackvity/loan-verify/internal/pipelineerr"

// MatchThreshold is the minimum partial-ratio score (spec §4.6 step 4) for a
// declared token to be considered matched against an extracted token.
const MatchThreshold = 85

// Match compares a declared FIO against an extracted FIO per spec §4.6: for
// each of the nine cross-script combinations, tokens are compared as an
// order-insensitive multiset using character-level partial-ratio fuzzy
// similarity; the overall result is true if any combination passes.
//
// Returns (matched, err): err is nil on a match, FIO_MISSING when declared is
// empty, and FIO_MISMATCH when extracted is empty or no combination passes.
func Match(declared, extracted string) (bool, *pipelineerr.Error) {
	if declared == "" {
		return false, pipelineerr.Business(pipelineerr.CodeFIOMissing)
	}
	if extracted == "" {
		return false, pipelineerr.Business(pipelineerr.CodeFIOMismatch)
	}

	declaredScripts := scripts(declared)
	extractedScripts := scripts(extracted)

	for _, d := range declaredScripts {
		declaredTokens := tokens(d)
		if len(declaredTokens) == 0 {
			continue
		}
		for _, e := range extractedScripts {
			extractedTokens := tokens(e)
			if matchTokenSets(declaredTokens, extractedTokens) {
				return true, nil
			}
		}
	}
	return false, pipelineerr.Business(pipelineerr.CodeFIOMismatch)
}

// matchTokenSets reports whether every declared token scores at least
// MatchThreshold against some not-yet-consumed extracted token (spec §4.6
// step 4; order-insensitive, spec §4.6 step 3 / invariant 8).
func matchTokenSets(declaredTokens, extractedTokens []string) bool {
	if len(extractedTokens) == 0 {
		return false
	}
	consumed := make([]bool, len(extractedTokens))

	for _, dt := range declaredTokens {
		bestIdx := -1
		bestScore := -1
		for i, et := range extractedTokens {
			if consumed[i] {
				continue
			}
			score := partialRatio(dt, et)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx == -1 || bestScore < MatchThreshold {
			return false
		}
		consumed[bestIdx] = true
	}
	return true
}

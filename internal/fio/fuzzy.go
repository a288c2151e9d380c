package fio

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// partialRatio scores the best alignment of the shorter string against every
// equal-length window of the longer string, character-level, on a 0-100
// scale, approximating fuzzywuzzy-style partial_ratio (spec §4.6 step 4).
// Used when no third-party fuzzy-matching library is present anywhere in the
// reference corpus (see DESIGN.md).
func partialRatio(a, b string) int {
	shorter, longer := a, b
	if len([]rune(a)) > len([]rune(b)) {
		shorter, longer = b, a
	}

	sr := []rune(shorter)
	lr := []rune(longer)
	if len(sr) == 0 {
		if len(lr) == 0 {
			return 100
		}
		return 0
	}
	if len(lr) < len(sr) {
		// Shorter is actually longer after rune conversion edge cases; just
		// compare directly.
		return ratio(string(sr), string(lr))
	}

	best := 0
	windowLen := len(sr)
	for start := 0; start+windowLen <= len(lr); start++ {
		window := string(lr[start : start+windowLen])
		score := ratio(string(sr), window)
		if score > best {
			best = score
		}
	}
	return best
}

// ratio converts edit distance between two equal-or-near-length strings into
// a 0-100 similarity score.
func ratio(a, b string) int {
	dist := levenshtein(a, b)
	maxLen := len([]rune(a))
	if len([]rune(b)) > maxLen {
		maxLen = len([]rune(b))
	}
	if maxLen == 0 {
		return 100
	}
	score := 100 - (dist*100)/maxLen
	if score < 0 {
		score = 0
	}
	return score
}

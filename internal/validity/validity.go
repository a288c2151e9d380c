// Package validity implements date parsing and the document-type-dependent
// validity-window evaluation (spec §4.7).
package validity

import (
	"strings"
	"time"

	"github.com/stackvity/loan-verify/internal/doctype"
)

// serverLocation is UTC+5, the fixed "now" reference per spec §4.7.
var serverLocation = time.FixedZone("UTC+5", 5*60*60)

// acceptedLayouts are the fixed non-textual formats accepted for doc_date.
var acceptedLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

// russianMonths maps textual Russian month names (genitive case, as commonly
// written on documents, e.g. "1 ноября 2025") to their numeric value.
var russianMonths = map[string]int{
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4,
	"мая": 5, "июня": 6, "июля": 7, "августа": 8,
	"сентября": 9, "октября": 10, "ноября": 11, "декабря": 12,
}

// ParseDocDate parses doc_date using the fixed accepted formats (spec §4.7).
// Returns the zero time and false on unparseable input.
func ParseDocDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	if t, ok := parseRussianTextualDate(raw); ok {
		return t, true
	}

	return time.Time{}, false
}

// parseRussianTextualDate parses forms like "1 ноября 2025" or "01 ноября 2025".
func parseRussianTextualDate(raw string) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) != 3 {
		return time.Time{}, false
	}

	day := 0
	for _, r := range fields[0] {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		day = day*10 + int(r-'0')
	}

	month, ok := russianMonths[fields[1]]
	if !ok {
		return time.Time{}, false
	}

	year := 0
	for _, r := range fields[2] {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		year = year*10 + int(r-'0')
	}
	if year < 1000 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// Overflowed (e.g. day 31 of a 30-day month); reject rather than
		// silently normalize.
		return time.Time{}, false
	}
	return t, true
}

// Now returns the server's current date in the fixed UTC+5 reference.
func Now() time.Time {
	return time.Now().In(serverLocation)
}

// Window computes the validity window for docType given its doc_date,
// returning the end date (inclusive) and whether the document is currently
// valid (spec §4.7: valid iff today <= end).
func Window(docType string, docDate time.Time, defaultDays int) (end time.Time, valid bool) {
	days := doctype.ValidityDays(docType, defaultDays)
	end = docDate.AddDate(0, 0, days)
	today := Now()
	valid = !today.After(endOfDay(end))
	return end, valid
}

// endOfDay returns the last instant of t's calendar date in the server's
// UTC+5 zone, so that "valid through end date" includes the whole end date
// rather than only its midnight instant.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), serverLocation)
}

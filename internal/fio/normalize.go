// Package fio implements order-insensitive fuzzy FIO (surname/given
// name/patronymic) comparison across Russian Cyrillic, Kazakh Cyrillic, and
// Latin transliteration normalizations (spec §4.6).
package fio

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// kazakhToRussian maps Kazakh-specific Cyrillic letters to their closest
// Russian counterparts, used to build the Kazakh-script normalization.
var kazakhToRussian = map[rune]rune{
	'ә': 'а', 'ғ': 'г', 'қ': 'к', 'ң': 'н',
	'ө': 'о', 'ұ': 'у', 'ү': 'у', 'һ': 'х', 'і': 'и',
}

// cyrillicToLatin is the fixed transliteration table from spec §4.6.
var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "e", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
}

// stripDiacritics removes combining marks (accents) via Unicode NFD
// decomposition, per spec §4.6 step 1.
func stripDiacritics(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s, err
	}
	return out, nil
}

// basicNormalize lowercases, collapses whitespace, strips punctuation and
// diacritics (spec §4.6 step 1).
func basicNormalize(s string) string {
	s = strings.ToLower(s)
	if stripped, err := stripDiacritics(s); err == nil {
		s = stripped
	}

	var b strings.Builder
	lastWasSpace := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsPunct(r):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			b.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// toKazakhCyrillic rewrites Kazakh-specific letters to their Russian
// counterparts (spec §4.6 step 2b).
func toKazakhCyrillic(s string) string {
	var b strings.Builder
	for _, r := range s {
		if mapped, ok := kazakhToRussian[r]; ok {
			b.WriteRune(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// toLatin transliterates Cyrillic letters via the fixed table (spec §4.6
// step 2c), first passing through the Kazakh normalization so Kazakh-only
// letters transliterate via their Russian counterpart.
func toLatin(s string) string {
	s = toKazakhCyrillic(s)
	var b strings.Builder
	for _, r := range s {
		if mapped, ok := cyrillicToLatin[r]; ok {
			b.WriteString(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// scripts produces the three candidate normalizations for a FIO string (spec
// §4.6 step 2): Russian Cyrillic (the basic normalization, unchanged),
// Kazakh Cyrillic, and Latin transliteration.
func scripts(s string) [3]string {
	base := basicNormalize(s)
	return [3]string{base, toKazakhCyrillic(base), toLatin(base)}
}

// tokens splits a normalized string into word tokens (spec §4.6 step 3).
func tokens(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

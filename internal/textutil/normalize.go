package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes accented characters and strips combining marks
// so OCR output like "Détail" signatures equal to "Detail".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey reduces an identifier to lowercase alphanumerics. Sheet
// numbers "A-101", "A 101", and "a101" all normalize to "a101".
func NormalizeKey(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTitle lowercases a title, folds diacritics, and collapses runs
// of whitespace and punctuation into single spaces.
func NormalizeTitle(value string) string {
	folded, _, err := transform.String(foldDiacritics, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	prevSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeSignature collapses OCR text or a block description into a
// stable comparison key. Whitespace, casing, punctuation, and diacritics
// are all folded; the result is empty when no letters or digits remain.
func NormalizeSignature(value string) string {
	return NormalizeTitle(value)
}

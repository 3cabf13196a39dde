package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC normalisation, strips control characters and trims
// surrounding whitespace. It never changes case.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// NormalizeIdentifier maps a raw symptom column header onto the identifier
// form used by the vocabulary: Normalize, inner spaces become underscores and
// runs of underscores collapse. "spotting_ urination" becomes
// "spotting_urination".
func NormalizeIdentifier(s string) string {
	s = Normalize(s)
	s = strings.ReplaceAll(s, " ", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

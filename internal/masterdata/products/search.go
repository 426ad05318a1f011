package products

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases the term and strips combining marks so accented input
// ("Açúcar") matches the unaccented names products are registered under.
func Fold(term string) string {
	folded, _, err := transform.String(foldChain, term)
	if err != nil {
		return strings.ToLower(term)
	}
	return strings.ToLower(folded)
}

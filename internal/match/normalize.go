package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize strips diacritics, uppercases, and collapses whitespace so
// owner names and legal text compare consistently across sources.
func Normalize(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(out), " "))
}

// Tokens splits normalized text into tokens of three or more characters,
// the ones worth matching on in a legal description.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",.()")
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

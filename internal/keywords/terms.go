package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"juego": {}, "juegos": {}, "de": {}, "un": {}, "una": {}, "con": {}, "para": {},
	"que": {}, "sea": {}, "sean": {}, "y": {}, "o": {}, "el": {}, "la": {}, "los": {},
	"las": {}, "algo": {}, "asi": {}, "llamado": {},
}

// ParseTerms turns raw user input into local search terms: lower-cased, split on
// whitespace, commas and semicolons, with stop words removed.
func ParseTerms(raw string) []string {
	return splitTerms(raw, true)
}

// SplitTerms tokenizes like ParseTerms but keeps stop words. Used for keywords that
// were already chosen by the classifier.
func SplitTerms(values ...string) []string {
	return splitTerms(strings.Join(values, " "), false)
}

func splitTerms(raw string, dropStopWords bool) []string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if dropStopWords && IsStopWord(field) {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		terms = append(terms, field)
	}
	return terms
}

// IsStopWord compares with diacritics folded, so "así" matches "asi".
func IsStopWord(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if _, ok := stopWords[term]; ok {
		return true
	}
	_, ok := stopWords[foldDiacritics(term)]
	return ok
}

func foldDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

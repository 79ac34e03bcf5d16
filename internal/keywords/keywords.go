// Package keywords derives the search_keywords column and parses raw search terms.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

const (
	descriptionPrefixRunes = 200
	minTokenRunes          = 3
)

// Derive returns the sorted, de-duplicated set of word tokens (3+ characters)
// found in title, genres, features and the first 200 characters of description.
func Derive(title, genres, features, description string) string {
	parts := make([]string, 0, 4)
	for _, value := range []string{title, genres, features, prefixRunes(description, descriptionPrefixRunes)} {
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	// strings.ToLower folds U+0130 to a plain "i", so "İstanbul" indexes as "istanbul".
	text := strings.ToLower(strings.Join(parts, " "))

	set := make(map[string]struct{})
	for _, token := range wordTokens(text, minTokenRunes) {
		set[token] = struct{}{}
	}
	items := make([]string, 0, len(set))
	for token := range set {
		items = append(items, token)
	}
	// Byte order of UTF-8 strings equals code point order.
	sort.Strings(items)
	return strings.Join(items, " ")
}

func ForRecord(rec domain.GameRecord) string {
	return Derive(rec.Title, rec.Genres, rec.Features, rec.Description)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// wordTokens returns every maximal run of word characters at least minRunes long.
func wordTokens(text string, minRunes int) []string {
	var (
		tokens []string
		start  = -1
		runes  int
	)
	flush := func(end int) {
		if start >= 0 && runes >= minRunes {
			tokens = append(tokens, text[start:end])
		}
		start = -1
		runes = 0
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			runes++
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

func prefixRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	count := 0
	for i := range value {
		if count == limit {
			return value[:i]
		}
		count++
	}
	return value
}

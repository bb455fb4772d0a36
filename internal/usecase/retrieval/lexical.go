package retrieval

import (
	"strings"
	"unicode"
)

// LexicalScore rates a record text against a query by token overlap:
// |query tokens ∩ text tokens| / |query tokens|, multiplied by boost when the
// whole query appears verbatim (case-insensitive) in the text. Pure function.
func LexicalScore(query, text string, boost float64) float64 {
	q := tokenSet(query)
	if len(q) == 0 {
		return 0
	}

	t := tokenSet(text)
	matched := 0
	for tok := range q {
		if _, ok := t[tok]; ok {
			matched++
		}
	}

	score := float64(matched) / float64(len(q))
	if boost > 1 && strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(query))) {
		score *= boost
	}
	return score
}

// tokenSet splits on non-alphanumeric runes and lowercases, deduplicating.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

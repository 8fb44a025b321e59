package enrich

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from heuristic tag candidates.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "which": {}, "not": {}, "can": {}, "but": {}, "their": {},
	"they": {}, "also": {}, "been": {}, "more": {}, "than": {}, "into": {},
	"such": {}, "these": {}, "those": {}, "when": {}, "where": {}, "all": {},
}

// heuristicSummary takes the first few sentences of the text, capped at a
// readable length.
func heuristicSummary(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	var b strings.Builder
	sentences := 0
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences++
			if sentences == 3 {
				break
			}
		}
		if b.Len() >= 400 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// heuristicTags picks the most frequent non-stopword terms, lowercase,
// ties broken alphabetically.
func heuristicTags(text string) []string {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		w = strings.Trim(w, "-")
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		counts[w]++
	}

	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > maxTags {
		terms = terms[:maxTags]
	}
	if terms == nil {
		terms = []string{}
	}
	return terms
}

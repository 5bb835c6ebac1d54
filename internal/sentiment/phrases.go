package sentiment

import "sort"

// topPhrases is the size of each item's key-phrase set
const topPhrases = 5

// minPhraseLength drops short tokens; "the", "and", ids and codes
const minPhraseLength = 4

var stopWords = map[string]bool{
	"this": true, "that": true, "these": true, "those": true, "with": true,
	"from": true, "have": true, "been": true, "were": true, "they": true,
	"them": true, "their": true, "there": true, "would": true, "could": true,
	"should": true, "about": true, "which": true, "when": true, "what": true,
	"your": true, "yours": true, "will": true, "just": true, "also": true,
	"very": true, "much": true, "more": true, "some": true, "than": true,
	"then": true, "into": true, "over": true, "only": true, "please": true,
	"thanks": true, "thank": true, "regards": true, "hello": true, "dear": true,
	"best": true, "kind": true, "team": true, "like": true, "know": true,
	"want": true, "need": true, "here": true, "does": true, "being": true, "after": true, "before": true, "because": true, "while": true,
}

// ExtractKeyPhrases returns the item's key-phrase set: lowercase alphabetic
// tokens longer than 3 characters, stop-words dropped, top 5 by frequency.
// Ties break alphabetically so the result is deterministic.
func ExtractKeyPhrases(text string) []string {
	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		if len(tok) < minPhraseLength || stopWords[tok] {
			continue
		}
		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > topPhrases {
		terms = terms[:topPhrases]
	}
	return terms
}

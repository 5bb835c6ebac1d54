package cluster

import (
	"math"
	"strings"
)

// document is one clustering input: the concatenated key phrases of a
// single analysis record
type document struct {
	terms []string
}

// corpus holds the documents of one clustering cycle plus the shared
// vocabulary that makes their weight vectors comparable
type corpus struct {
	docs []document

	// vocabulary is the union of terms across all documents' phrase lists,
	// in first-seen order. Per-document term weights are only comparable
	// once projected onto this common axis.
	vocabulary []string
	vocabIndex map[string]int
}

// buildCorpus assembles a corpus from per-document phrase lists
func buildCorpus(phraseSets [][]string) *corpus {
	c := &corpus{vocabIndex: make(map[string]int)}

	for _, phrases := range phraseSets {
		terms := make([]string, 0, len(phrases))
		for _, p := range phrases {
			term := strings.ToLower(strings.TrimSpace(p))
			if term == "" {
				continue
			}
			terms = append(terms, term)
			if _, seen := c.vocabIndex[term]; !seen {
				c.vocabIndex[term] = len(c.vocabulary)
				c.vocabulary = append(c.vocabulary, term)
			}
		}
		c.docs = append(c.docs, document{terms: terms})
	}

	return c
}

// vectors computes one fixed-length TF-IDF weight vector per document over
// the shared vocabulary, zero where a term is absent for that document
func (c *corpus) vectors() [][]float64 {
	n := len(c.docs)

	// Document frequency per vocabulary term
	df := make([]int, len(c.vocabulary))
	for _, doc := range c.docs {
		seen := make(map[int]bool, len(doc.terms))
		for _, term := range doc.terms {
			idx := c.vocabIndex[term]
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}

	vectors := make([][]float64, n)
	for i, doc := range c.docs {
		vec := make([]float64, len(c.vocabulary))
		if len(doc.terms) > 0 {
			counts := make(map[int]int, len(doc.terms))
			for _, term := range doc.terms {
				counts[c.vocabIndex[term]]++
			}
			for idx, count := range counts {
				tf := float64(count) / float64(len(doc.terms))
				idf := math.Log(float64(n)/float64(df[idx])) + 1
				vec[idx] = tf * idf
			}
		}
		vectors[i] = vec
	}

	return vectors
}

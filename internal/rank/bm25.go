// Package rank scores result documents against a query with Okapi BM25,
// blended with the provider's own ordering. Pure computation, no I/O.
package rank

import (
	"math"
	"sort"
	"strings"
)

// Okapi BM25 parameters (standard values).
const (
	k1 = 1.5
	b  = 0.75
)

// positionalWeight is the share of the final score reserved for the
// provider's original ranking. BM25 alone can override a source's own
// relevance tuning; blending keeps both signals (80/20).
const positionalWeight = 0.2

// Scores computes a final relevance score per document, index-aligned with
// docs in their original provider order. Returns nil when the query is empty
// or no document has any content, so callers can distinguish "not scored"
// from a zero score.
func Scores(query string, docs []string) []float64 {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	tokenized := make([][]string, len(docs))
	totalLen := 0
	nonEmpty := 0
	for i, d := range docs {
		tokenized[i] = tokenize(d)
		totalLen += len(tokenized[i])
		if len(tokenized[i]) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil
	}

	raw := bm25(terms, tokenized, float64(totalLen)/float64(len(docs)))
	scores := normalize(raw)

	// Positional bonus favoring the provider's original ranking.
	n := float64(len(scores))
	for i := range scores {
		scores[i] += (n - float64(i)) / n * positionalWeight
	}
	return scores
}

// Order returns document indices sorted by descending score. The sort is
// stable, so ties keep the original provider order.
func Order(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, c int) bool {
		return scores[idx[a]] > scores[idx[c]]
	})
	return idx
}

// bm25 computes raw Okapi BM25 scores for each document.
func bm25(terms []string, docs [][]string, avgLen float64) []float64 {
	n := len(docs)

	// Document frequency per query term.
	df := make(map[string]int, len(terms))
	freqs := make([]map[string]int, n)
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		freqs[i] = tf
		for _, term := range terms {
			if tf[term] > 0 {
				df[term]++
			}
		}
	}

	if avgLen == 0 {
		avgLen = 1
	}

	scores := make([]float64, n)
	for _, term := range terms {
		d := df[term]
		if d == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(d)+0.5)/(float64(d)+0.5))
		for i := range docs {
			tf := float64(freqs[i][term])
			if tf == 0 {
				continue
			}
			dl := float64(len(docs[i]))
			scores[i] += idf * tf * (k1 + 1) / (tf + k1*(1-b+b*dl/avgLen))
		}
	}
	return scores
}

// normalize min-max scales scores into [0,1]. A flat distribution
// (max==min) normalizes to all zeros.
func normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	minV, maxV := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	out := make([]float64, len(scores))
	if maxV == minV {
		return out
	}
	for i, s := range scores {
		out[i] = (s - minV) / (maxV - minV)
	}
	return out
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

package lexical

import (
	"math"
	"sort"
)

// BM25 parameters matching the common Okapi defaults.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Index is a BM25 Okapi ranking structure over per-chunk token lists. The
// token lists are kept verbatim so the index can be persisted and rebuilt
// bit-identically.
type Index struct {
	tokens    [][]string
	docFreqs  []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

// Build constructs the index over the given token lists. Position i in every
// slice corresponds to chunk position i. An empty corpus is valid and scores
// every query to nothing.
func Build(tokens [][]string) *Index {
	idx := &Index{
		tokens:   tokens,
		docFreqs: make([]map[string]int, len(tokens)),
		docLens:  make([]int, len(tokens)),
		idf:      make(map[string]float64),
	}

	nd := len(tokens)
	totalLen := 0
	termDocCount := make(map[string]int)
	for i, doc := range tokens {
		freq := make(map[string]int, len(doc))
		for _, tok := range doc {
			freq[tok]++
		}
		idx.docFreqs[i] = freq
		idx.docLens[i] = len(doc)
		totalLen += len(doc)
		for tok := range freq {
			termDocCount[tok]++
		}
	}
	if nd > 0 {
		idx.avgDocLen = float64(totalLen) / float64(nd)
	}

	// Okapi IDF with the usual epsilon floor for terms that occur in more
	// than half of the corpus.
	idfSum := 0.0
	negative := make([]string, 0)
	for tok, df := range termDocCount {
		v := math.Log(float64(nd)-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(idx.idf) > 0 {
		avgIDF := idfSum / float64(len(idx.idf))
		floor := bm25Epsilon * avgIDF
		for _, tok := range negative {
			idx.idf[tok] = floor
		}
	}

	return idx
}

// Tokens returns the underlying token lists for persistence.
func (idx *Index) Tokens() [][]string { return idx.tokens }

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.tokens) }

// Scores computes the BM25 relevance of every chunk for the query tokens,
// positionally aligned with the indexed corpus.
func (idx *Index) Scores(queryTokens []string) []float64 {
	scores := make([]float64, len(idx.tokens))
	if len(idx.tokens) == 0 || idx.avgDocLen == 0 {
		return scores
	}
	for _, tok := range queryTokens {
		idf, ok := idx.idf[tok]
		if !ok {
			continue
		}
		for i, freq := range idx.docFreqs {
			tf := float64(freq[tok])
			if tf == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgDocLen)
			scores[i] += idf * (tf * (bm25K1 + 1)) / (tf + norm)
		}
	}
	return scores
}

// Candidate is one lexical match by chunk position.
type Candidate struct {
	Position int
	Score    float64
}

// Search returns the top limit chunk positions by BM25 score, descending,
// ties broken by ascending position.
func (idx *Index) Search(queryTokens []string, limit int) []Candidate {
	scores := idx.Scores(queryTokens)
	if limit <= 0 || limit > len(scores) {
		limit = len(scores)
	}
	out := make([]Candidate, 0, len(scores))
	for i, s := range scores {
		out = append(out, Candidate{Position: i, Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Position < out[j].Position
	})
	return out[:limit]
}

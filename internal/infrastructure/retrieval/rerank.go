package retrieval

import (
	"context"

	"github.com/kirillkom/kb-router/internal/infrastructure/index/lexical"
)

// OverlapReranker scores (query, passage) pairs by weighted token overlap.
// It favors passages that cover more of the query's distinct terms and, to a
// lesser degree, passages where those terms appear early.
type OverlapReranker struct{}

func NewOverlapReranker() *OverlapReranker { return &OverlapReranker{} }

func (r *OverlapReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	queryTokens := lexical.Tokenize(query)
	querySet := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = true
	}

	scores := make([]float64, len(passages))
	if len(querySet) == 0 {
		return scores, nil
	}

	for i, passage := range passages {
		tokens := lexical.Tokenize(passage)
		if len(tokens) == 0 {
			continue
		}
		covered := make(map[string]bool, len(querySet))
		earliest := -1
		for pos, tok := range tokens {
			if querySet[tok] {
				covered[tok] = true
				if earliest < 0 {
					earliest = pos
				}
			}
		}
		coverage := float64(len(covered)) / float64(len(querySet))
		var early float64
		if earliest >= 0 {
			early = 1 - float64(earliest)/float64(len(tokens))
		}
		scores[i] = 0.8*coverage + 0.2*early
	}
	return scores, nil
}

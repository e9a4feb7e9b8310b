package retrieval

import (
	"context"
	"testing"
)

func TestOverlapRerankerPrefersCoverage(t *testing.T) {
	r := NewOverlapReranker()
	scores, err := r.Score(context.Background(), "postgres backup restore", []string{
		"postgres backup and restore runbook",
		"postgres connection tuning",
		"meeting notes",
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("full coverage must beat partial: %v", scores)
	}
	if scores[2] != 0 {
		t.Fatalf("no overlap must score zero, got %v", scores[2])
	}
}

func TestOverlapRerankerEmptyQuery(t *testing.T) {
	r := NewOverlapReranker()
	scores, err := r.Score(context.Background(), "!!!", []string{"anything"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] != 0 {
		t.Fatalf("empty query must score zero, got %v", scores[0])
	}
}

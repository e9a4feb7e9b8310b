package lexical

import (
	"reflect"
	"testing"
)

func TestTokenizeLatinCyrillicDigits(t *testing.T) {
	got := Tokenize("Ошибка 502: Bad_Gateway (nginx)!")
	want := []string{"ошибка", "502", "bad_gateway", "nginx"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize("  ...  "); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
}

func TestSearchRanksMatchingChunkFirst(t *testing.T) {
	idx := Build([][]string{
		Tokenize("how to deploy the api service"),
		Tokenize("database connection pool tuning"),
		Tokenize("deploy deploy deploy checklist"),
	})

	hits := idx.Search(Tokenize("deploy"), 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(hits))
	}
	if hits[0].Position != 2 {
		t.Fatalf("expected chunk 2 first, got %d", hits[0].Position)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("expected strictly descending scores, got %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestSearchTiesKeepPositionOrder(t *testing.T) {
	idx := Build([][]string{
		Tokenize("alpha beta"),
		Tokenize("alpha beta"),
	})
	hits := idx.Search(Tokenize("alpha"), 2)
	if hits[0].Position != 0 || hits[1].Position != 1 {
		t.Fatalf("expected position-ordered ties, got %v", hits)
	}
}

func TestSearchClampsLimit(t *testing.T) {
	idx := Build([][]string{Tokenize("one"), Tokenize("two")})
	hits := idx.Search(Tokenize("one"), 100)
	if len(hits) != 2 {
		t.Fatalf("expected clamp to corpus size, got %d", len(hits))
	}
}

func TestEmptyCorpusScoresNothing(t *testing.T) {
	idx := Build(nil)
	if hits := idx.Search(Tokenize("anything"), 5); len(hits) != 0 {
		t.Fatalf("expected no candidates, got %d", len(hits))
	}
}

func TestUnknownTermContributesNothing(t *testing.T) {
	idx := Build([][]string{Tokenize("known words only")})
	scores := idx.Scores(Tokenize("unseen"))
	if scores[0] != 0 {
		t.Fatalf("expected zero score for unseen term, got %v", scores[0])
	}
}

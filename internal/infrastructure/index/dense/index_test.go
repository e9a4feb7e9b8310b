package dense

import (
	"bytes"
	"math"
	"testing"
)

func TestSearchRanksByInnerProduct(t *testing.T) {
	idx := New(2)
	if err := idx.Add([][]float32{{1, 0}, {0, 1}, {0.7071, 0.7071}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits[0].Position != 0 {
		t.Fatalf("expected exact match first, got position %d", hits[0].Position)
	}
	if hits[1].Position != 2 {
		t.Fatalf("expected diagonal vector second, got position %d", hits[1].Position)
	}
}

func TestSearchClampsToCorpusSize(t *testing.T) {
	idx := New(2)
	_ = idx.Add([][]float32{{1, 0}})
	hits, err := idx.Search([]float32{0, 1}, 50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected clamp to 1 candidate, got %d", len(hits))
	}
}

func TestSearchDimMismatch(t *testing.T) {
	idx := New(3)
	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	norm := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]))
	if math.Abs(norm-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", norm)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector must stay zero, got %v", zero)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	idx := New(3)
	_ = idx.Add([][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}})

	var buf bytes.Buffer
	if err := idx.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if loaded.Dim() != 3 || loaded.Len() != 2 {
		t.Fatalf("unexpected loaded shape: dim=%d len=%d", loaded.Dim(), loaded.Len())
	}

	want, _ := idx.Search([]float32{1, 0, 0}, 2)
	got, _ := loaded.Search([]float32{1, 0, 0}, 2)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("round trip changed search result %d: %v != %v", i, want[i], got[i])
		}
	}
}

func TestReadRejectsCorruptMagic(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("nope-not-an-index"))); err == nil {
		t.Fatalf("expected corrupt magic error")
	}
}

func TestEmptyIndexRoundTrip(t *testing.T) {
	idx := New(0)
	var buf bytes.Buffer
	if err := idx.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if loaded.Len() != 0 {
		t.Fatalf("expected empty index, got %d", loaded.Len())
	}
}

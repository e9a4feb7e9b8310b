package retrieval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/infrastructure/index/dense"
)

func testArtifacts(t *testing.T) Artifacts {
	t.Helper()
	idx := dense.New(2)
	if err := idx.Add([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return Artifacts{
		Chunks: []domain.Chunk{
			{DocID: "a.md", Source: "a.md", ChunkID: "a.md::c0000", Title: "Document", Text: "alpha"},
			{DocID: "b.md", Source: "b.md", ChunkID: "b.md::c0000", Title: "Document", Text: "beta"},
		},
		Tokens: [][]string{{"alpha"}, {"beta"}},
		Dense:  idx,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(testArtifacts(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	art, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if art == nil {
		t.Fatalf("expected artifacts")
	}
	if len(art.Chunks) != 2 || len(art.Tokens) != 2 || art.Dense.Len() != 2 {
		t.Fatalf("unexpected shapes: chunks=%d tokens=%d vectors=%d",
			len(art.Chunks), len(art.Tokens), art.Dense.Len())
	}
	if art.Chunks[1].ChunkID != "b.md::c0000" {
		t.Fatalf("chunk order changed: %+v", art.Chunks)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Save(testArtifacts(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 3 {
		t.Fatalf("expected exactly 3 artifacts, got %d", len(entries))
	}
}

func TestLoadWithoutArtifacts(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	art, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if art != nil {
		t.Fatalf("expected nil artifacts, got %+v", art)
	}
}

func TestLoadRejectsPartialArtifacts(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := os.WriteFile(filepath.Join(dir, chunksFile), []byte("[]"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := store.Load()
	if !domain.IsKind(err, domain.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
}

func TestLoadRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	art := testArtifacts(t)
	art.Tokens = art.Tokens[:1]
	if err := store.Save(art); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err := store.Load()
	if !domain.IsKind(err, domain.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
}

func TestLoadRejectsCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Save(testArtifacts(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tokensFile), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := store.Load()
	if !domain.IsKind(err, domain.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
}

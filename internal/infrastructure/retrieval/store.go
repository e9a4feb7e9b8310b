package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/infrastructure/index/dense"
)

const (
	chunksFile  = "chunks.json"
	tokensFile  = "tokens.json"
	vectorsFile = "vectors.bin"
)

// Store persists the three index artifacts under one directory: chunk
// metadata, lexical token lists and the dense vector index. They are only
// meaningful together; a partial or length-mismatched set is treated as no
// index at all.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("index dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Artifacts is one loadable index generation.
type Artifacts struct {
	Chunks []domain.Chunk
	Tokens [][]string
	Dense  *dense.Index
}

// Save writes all three artifacts. Each is written to a temp file first and
// renamed into place only after every write succeeded, so a failed save
// leaves the previous on-disk generation untouched.
func (s *Store) Save(art Artifacts) error {
	chunksTmp, err := s.writeTempJSON(chunksFile, art.Chunks)
	if err != nil {
		return err
	}
	tokensTmp, err := s.writeTempJSON(tokensFile, art.Tokens)
	if err != nil {
		s.discard(chunksTmp)
		return err
	}
	vectorsTmp, err := s.writeTempVectors(art.Dense)
	if err != nil {
		s.discard(chunksTmp, tokensTmp)
		return err
	}

	for _, p := range []struct{ tmp, name string }{
		{chunksTmp, chunksFile},
		{tokensTmp, tokensFile},
		{vectorsTmp, vectorsFile},
	} {
		if err := os.Rename(p.tmp, filepath.Join(s.dir, p.name)); err != nil {
			return fmt.Errorf("publish %s: %w", p.name, err)
		}
	}
	return nil
}

// Load reads the persisted generation. It returns (nil, nil) when no artifact
// exists, and ErrIndexInconsistent when only some exist or their lengths
// disagree — a corrupt state must force a rebuild, never a partial load.
func (s *Store) Load() (*Artifacts, error) {
	chunksPath := filepath.Join(s.dir, chunksFile)
	tokensPath := filepath.Join(s.dir, tokensFile)
	vectorsPath := filepath.Join(s.dir, vectorsFile)

	present := 0
	for _, p := range []string{chunksPath, tokensPath, vectorsPath} {
		if _, err := os.Stat(p); err == nil {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present < 3 {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index",
			fmt.Errorf("%d of 3 artifacts present", present))
	}

	var chunks []domain.Chunk
	if err := readJSON(chunksPath, &chunks); err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}
	var tokens [][]string
	if err := readJSON(tokensPath, &tokens); err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}

	f, err := os.Open(vectorsPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}
	defer f.Close()
	denseIdx, err := dense.Read(f)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index", err)
	}

	if len(chunks) != len(tokens) || denseIdx.Len() != len(chunks) {
		return nil, domain.WrapError(domain.ErrIndexInconsistent, "load index",
			fmt.Errorf("lengths disagree: chunks=%d tokens=%d vectors=%d",
				len(chunks), len(tokens), denseIdx.Len()))
	}

	return &Artifacts{Chunks: chunks, Tokens: tokens, Dense: denseIdx}, nil
}

func (s *Store) writeTempJSON(name string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return tmp, nil
}

func (s *Store) writeTempVectors(idx *dense.Index) (string, error) {
	tmp := filepath.Join(s.dir, vectorsFile+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", vectorsFile, err)
	}
	if err := idx.Write(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", vectorsFile, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", vectorsFile, err)
	}
	return tmp, nil
}

func (s *Store) discard(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

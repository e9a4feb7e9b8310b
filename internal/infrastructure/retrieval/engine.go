package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
	"github.com/kirillkom/kb-router/internal/infrastructure/index/dense"
	"github.com/kirillkom/kb-router/internal/infrastructure/index/lexical"
)

const (
	// flatTolerance guards min-max normalization: a candidate pool whose
	// scores span less than this is treated as flat and normalizes to zero.
	flatTolerance = 1e-9

	defaultK          = 5
	defaultCandidates = 30
	defaultAlpha      = 0.6
	defaultRerankTopN = 10
)

// Config tunes the hybrid blend. Alpha weights the dense score; the lexical
// score gets the complement.
type Config struct {
	Alpha      float64
	Candidates int
	DefaultK   int
	Rerank     bool
	RerankTopN int
}

func (c Config) withDefaults() Config {
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = defaultAlpha
	}
	if c.Candidates <= 0 {
		c.Candidates = defaultCandidates
	}
	if c.DefaultK <= 0 {
		c.DefaultK = defaultK
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = defaultRerankTopN
	}
	return c
}

// generation is one immutable index snapshot. Searches read whichever
// generation was current when they started; Reindex builds a full replacement
// off to the side and publishes it with a single pointer swap.
type generation struct {
	chunks  []domain.Chunk
	dense   *dense.Index
	lexical *lexical.Index
}

// Engine implements hybrid (dense + lexical) retrieval over a chunked corpus
// with optional pairwise reranking of the head.
type Engine struct {
	loader   ports.DocumentLoader
	chunker  ports.Chunker
	embedder ports.Embedder
	reranker ports.Reranker
	store    *Store
	cfg      Config
	logger   *slog.Logger

	current atomic.Pointer[generation]
}

func NewEngine(
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	embedder ports.Embedder,
	reranker ports.Reranker,
	store *Store,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		reranker: reranker,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Reindex rebuilds the whole index from the corpus directory, persists the
// new artifacts and atomically publishes the new generation. Concurrent
// searches keep serving the previous snapshot until the swap.
func (e *Engine) Reindex(ctx context.Context) (domain.ReindexStats, error) {
	docs, err := e.loader.LoadDocuments(ctx)
	if err != nil {
		return domain.ReindexStats{}, fmt.Errorf("load documents: %w", err)
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, e.chunker.Split(doc)...)
	}

	gen, art, err := e.buildGeneration(ctx, chunks)
	if err != nil {
		return domain.ReindexStats{}, err
	}
	if err := e.store.Save(art); err != nil {
		return domain.ReindexStats{}, fmt.Errorf("persist index: %w", err)
	}
	e.current.Store(gen)

	stats := domain.ReindexStats{Documents: countDocs(chunks), Chunks: len(chunks)}
	e.logger.Info("index rebuilt", "docs", stats.Documents, "chunks", stats.Chunks)
	return stats, nil
}

// LoadIfExists restores the persisted generation. It reports false without
// error when no artifacts exist; partial or mismatched artifacts surface as
// ErrIndexInconsistent.
func (e *Engine) LoadIfExists(ctx context.Context) (bool, error) {
	art, err := e.store.Load()
	if err != nil {
		return false, err
	}
	if art == nil {
		return false, nil
	}
	e.current.Store(&generation{
		chunks:  art.Chunks,
		dense:   art.Dense,
		lexical: lexical.Build(art.Tokens),
	})
	e.logger.Info("index loaded", "chunks", len(art.Chunks))
	return true, nil
}

// Search blends dense and lexical candidates and returns the top k hits. When
// no generation is in memory it tries a load first; with no index on disk or
// an empty corpus it returns no hits and no error. An embedding failure is
// returned to the caller.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	gen := e.current.Load()
	if gen == nil {
		if _, err := e.LoadIfExists(ctx); err != nil {
			return nil, err
		}
		gen = e.current.Load()
	}
	if gen == nil || len(gen.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = e.cfg.DefaultK
	}

	denseScores, denseOrder, err := e.denseCandidates(ctx, gen, query)
	if err != nil {
		return nil, err
	}
	lexOrder := gen.lexical.Search(lexical.Tokenize(query), e.cfg.Candidates)
	// Raw scores exist only for the truncated candidate lists. A chunk that
	// reached the pool through one list alone keeps 0 for the other list, so
	// the min-max normalization below sees the same pool on both sides.
	lexScores := make(map[int]float64, len(lexOrder))
	for _, c := range lexOrder {
		lexScores[c.Position] = c.Score
	}

	// Union keeps dense candidates first, then lexical-only ones, so that
	// positions are deterministic before any scoring happens.
	seen := make(map[int]bool, len(denseOrder)+len(lexOrder))
	var pool []int
	for _, c := range denseOrder {
		if !seen[c.Position] {
			seen[c.Position] = true
			pool = append(pool, c.Position)
		}
	}
	for _, c := range lexOrder {
		if !seen[c.Position] {
			seen[c.Position] = true
			pool = append(pool, c.Position)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	denseRaw := make([]float64, len(pool))
	lexRaw := make([]float64, len(pool))
	for i, pos := range pool {
		denseRaw[i] = denseScores[pos]
		lexRaw[i] = lexScores[pos]
	}
	denseNorm := minMax(denseRaw)
	lexNorm := minMax(lexRaw)

	hits := make([]domain.Hit, len(pool))
	for i, pos := range pool {
		chunk := gen.chunks[pos]
		hits[i] = domain.Hit{
			Source:     baseName(chunk.Source),
			DocID:      chunk.DocID,
			ChunkID:    chunk.ChunkID,
			Title:      chunk.Title,
			Text:       chunk.Text,
			Score:      e.cfg.Alpha*denseNorm[i] + (1-e.cfg.Alpha)*lexNorm[i],
			ScoreDense: denseNorm[i],
			ScoreLex:   lexNorm[i],
		}
	}
	positions := append([]int(nil), pool...)
	sortHits(hits, positions)

	hits = e.rerank(ctx, query, hits)

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (e *Engine) denseCandidates(ctx context.Context, gen *generation, query string) (map[int]float64, []dense.Candidate, error) {
	if gen.dense == nil || gen.dense.Len() == 0 {
		return map[int]float64{}, nil, nil
	}
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	dense.Normalize(vec)
	order, err := gen.dense.Search(vec, e.cfg.Candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("dense search: %w", err)
	}
	scores := make(map[int]float64, len(order))
	for _, c := range order {
		scores[c.Position] = c.Score
	}
	return scores, order, nil
}

// rerank rescores the head of the ranked pool with the pairwise model and
// reorders it. Any reranker failure degrades to the hybrid order.
func (e *Engine) rerank(ctx context.Context, query string, hits []domain.Hit) []domain.Hit {
	if !e.cfg.Rerank || e.reranker == nil || len(hits) == 0 {
		return hits
	}
	n := e.cfg.RerankTopN
	if n > len(hits) {
		n = len(hits)
	}
	passages := make([]string, n)
	for i := 0; i < n; i++ {
		passages[i] = hits[i].Text
	}
	scores, err := e.reranker.Score(ctx, query, passages)
	if err != nil || len(scores) != n {
		e.logger.Warn("rerank skipped", "error", err)
		return hits
	}
	head := make([]domain.Hit, n)
	copy(head, hits[:n])
	for i := range head {
		s := scores[i]
		head[i].ScoreRerank = &s
	}
	sort.SliceStable(head, func(i, j int) bool {
		return *head[i].ScoreRerank > *head[j].ScoreRerank
	})
	return append(head, hits[n:]...)
}

func (e *Engine) buildGeneration(ctx context.Context, chunks []domain.Chunk) (*generation, Artifacts, error) {
	tokens := make([][]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		tokens[i] = lexical.Tokenize(c.Text)
		texts[i] = c.Text
	}

	denseIdx := dense.New(0)
	if len(chunks) > 0 {
		vectors, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, Artifacts{}, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, Artifacts{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for _, v := range vectors {
			dense.Normalize(v)
		}
		denseIdx = dense.New(len(vectors[0]))
		if err := denseIdx.Add(vectors); err != nil {
			return nil, Artifacts{}, fmt.Errorf("build dense index: %w", err)
		}
	}

	gen := &generation{chunks: chunks, dense: denseIdx, lexical: lexical.Build(tokens)}
	return gen, Artifacts{Chunks: chunks, Tokens: tokens, Dense: denseIdx}, nil
}

// sortHits orders by hybrid score descending with ascending chunk position as
// the tie-break, keeping results stable across rebuilds of the same corpus.
func sortHits(hits []domain.Hit, positions []int) {
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return positions[i] < positions[j]
	})
	sorted := make([]domain.Hit, len(hits))
	for out, in := range idx {
		sorted[out] = hits[in]
	}
	copy(hits, sorted)
}

// minMax maps scores to [0, 1] over the candidate pool. A flat pool yields
// all zeros so one degenerate signal cannot dominate the blend.
func minMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi-lo < flatTolerance {
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

func countDocs(chunks []domain.Chunk) int {
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		seen[c.DocID] = true
	}
	return len(seen)
}

func baseName(source string) string {
	s := strings.ReplaceAll(source, `\`, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

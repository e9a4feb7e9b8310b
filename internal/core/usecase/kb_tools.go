package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/ports"
)

const defaultSearchK = 5

var (
	kParamRe      = regexp.MustCompile(`\bk\s*=\s*(\d+)`)
	kParamStripRe = regexp.MustCompile(`\bk\s*=\s*\d+\s*;?\s*`)
)

type kbHit struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type kbHits struct {
	Hits []kbHit `json:"hits"`
}

// KBTools builds the knowledge-base toolset bound to the kb agent.
func KBTools(engine ports.RetrievalEngine) []ports.Tool {
	return []ports.Tool{
		kbSearchTool{engine: engine},
		kbSearchKTool{engine: engine},
		kbReindexTool{engine: engine},
	}
}

type kbSearchTool struct {
	engine ports.RetrievalEngine
}

func (t kbSearchTool) Name() string { return "kb_search" }
func (t kbSearchTool) Description() string {
	return "Search in local KB. Input: query string. Returns JSON with hits (source, text, score)."
}

func (t kbSearchTool) Call(ctx context.Context, input string) (string, error) {
	return kbSearch(ctx, t.engine, input, defaultSearchK)
}

type kbSearchKTool struct {
	engine ports.RetrievalEngine
}

func (t kbSearchKTool) Name() string { return "kb_search_k" }
func (t kbSearchKTool) Description() string {
	return "Search in local KB with custom k. Input: 'k=7; <your query>'. Returns JSON hits."
}

func (t kbSearchKTool) Call(ctx context.Context, input string) (string, error) {
	k := defaultSearchK
	if m := kParamRe.FindStringSubmatch(input); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			k = parsed
		}
	}
	query := strings.TrimSpace(kParamStripRe.ReplaceAllString(input, ""))
	if query == "" {
		query = strings.TrimSpace(input)
	}
	return kbSearch(ctx, t.engine, query, k)
}

type kbReindexTool struct {
	engine ports.RetrievalEngine
}

func (t kbReindexTool) Name() string { return "kb_reindex" }
func (t kbReindexTool) Description() string {
	return "Reindex KB from local documents."
}

func (t kbReindexTool) Call(ctx context.Context, _ string) (string, error) {
	stats, err := t.engine.Reindex(ctx)
	if err != nil {
		return "", fmt.Errorf("kb reindex: %w", err)
	}
	payload, err := json.Marshal(map[string]any{
		"ok":     true,
		"docs":   stats.Documents,
		"chunks": stats.Chunks,
	})
	if err != nil {
		return "", fmt.Errorf("marshal reindex result: %w", err)
	}
	return string(payload), nil
}

func kbSearch(ctx context.Context, engine ports.RetrievalEngine, query string, k int) (string, error) {
	hits, err := engine.Search(ctx, query, k)
	if err != nil {
		return "", fmt.Errorf("kb search: %w", err)
	}

	out := kbHits{Hits: make([]kbHit, 0, len(hits))}
	for _, h := range hits {
		out.Hits = append(out.Hits, kbHit{Source: h.Source, Text: h.Text, Score: h.Score})
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal kb hits: %w", err)
	}
	return string(payload), nil
}

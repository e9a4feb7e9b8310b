package config

import "testing"

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("HYBRID_ALPHA", "")
	t.Setenv("HYBRID_CANDIDATES", "")
	t.Setenv("SEARCH_TOP_K", "")
	t.Setenv("RERANK_ENABLED", "")
	t.Setenv("RERANK_TOP_N", "")

	cfg := Load()
	if cfg.HybridAlpha != 0.6 {
		t.Fatalf("expected default alpha 0.6, got %v", cfg.HybridAlpha)
	}
	if cfg.HybridCandidates != 30 {
		t.Fatalf("expected default candidates 30, got %d", cfg.HybridCandidates)
	}
	if cfg.SearchTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.SearchTopK)
	}
	if !cfg.RerankEnabled {
		t.Fatalf("expected rerank enabled by default")
	}
	if cfg.RerankTopN != 10 {
		t.Fatalf("expected default rerank top n 10, got %d", cfg.RerankTopN)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("HYBRID_ALPHA", "0.75")
	t.Setenv("HYBRID_CANDIDATES", "50")
	t.Setenv("CHAT_MAX_TURNS", "8")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RERANK_ENABLED", "false")

	cfg := Load()
	if cfg.HybridAlpha != 0.75 {
		t.Fatalf("expected alpha override, got %v", cfg.HybridAlpha)
	}
	if cfg.HybridCandidates != 50 {
		t.Fatalf("expected candidates 50, got %d", cfg.HybridCandidates)
	}
	if cfg.ChatMaxTurns != 8 {
		t.Fatalf("expected max turns 8, got %d", cfg.ChatMaxTurns)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.RerankEnabled {
		t.Fatalf("expected rerank disabled")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("HYBRID_ALPHA", "not-a-number")
	t.Setenv("SEARCH_TOP_K", "five")

	cfg := Load()
	if cfg.HybridAlpha != 0.6 {
		t.Fatalf("malformed float must fall back, got %v", cfg.HybridAlpha)
	}
	if cfg.SearchTopK != 5 {
		t.Fatalf("malformed int must fall back, got %d", cfg.SearchTopK)
	}
}

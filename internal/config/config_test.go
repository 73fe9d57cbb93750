package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_FETCH_K", "")
	t.Setenv("RETRIEVAL_TEXT_TOP_K", "")
	t.Setenv("RETRIEVAL_DIVERSITY_LAMBDA", "")
	t.Setenv("RETRIEVAL_RANK_EXPANDED", "")

	cfg := Load()
	if cfg.RetrievalFetchK != 15 {
		t.Fatalf("expected default fetch k 15, got %d", cfg.RetrievalFetchK)
	}
	if cfg.RetrievalTextTopK != 5 {
		t.Fatalf("expected default text top k 5, got %d", cfg.RetrievalTextTopK)
	}
	if cfg.RetrievalDiversityLambda != 0.7 {
		t.Fatalf("expected default diversity lambda 0.7, got %f", cfg.RetrievalDiversityLambda)
	}
	if cfg.RetrievalRankExpanded {
		t.Fatal("expected rank-expanded policy off by default")
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_FETCH_K", "30")
	t.Setenv("RETRIEVAL_DIVERSITY_LAMBDA", "0.4")
	t.Setenv("RETRIEVAL_MAX_EXPANSION", "5")
	t.Setenv("RETRIEVAL_RANK_EXPANDED", "true")

	cfg := Load()
	if cfg.RetrievalFetchK != 30 {
		t.Fatalf("expected fetch k 30, got %d", cfg.RetrievalFetchK)
	}
	if cfg.RetrievalDiversityLambda != 0.4 {
		t.Fatalf("expected diversity lambda 0.4, got %f", cfg.RetrievalDiversityLambda)
	}
	if cfg.RetrievalMaxExpansion != 5 {
		t.Fatalf("expected max expansion 5, got %d", cfg.RetrievalMaxExpansion)
	}
	if !cfg.RetrievalRankExpanded {
		t.Fatal("expected rank-expanded policy enabled")
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("RETRIEVAL_PAGE_WINDOW", "wide")
	t.Setenv("RETRIEVAL_DIVERSITY_LAMBDA", "lots")

	cfg := Load()
	if cfg.RetrievalPageWindow != 1 {
		t.Fatalf("expected fallback page window 1, got %d", cfg.RetrievalPageWindow)
	}
	if cfg.RetrievalDiversityLambda != 0.7 {
		t.Fatalf("expected fallback lambda 0.7, got %f", cfg.RetrievalDiversityLambda)
	}
}

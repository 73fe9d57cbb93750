package usecase

import "testing"

func TestMMRLambdaOneIsPureTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},
		{1, 0},
		{0.707, 0.707},
		{0.9, 0.1},
	}
	ids := []string{"far", "exact", "mid", "near"}

	out := mmrSelect(query, candidates, ids, nil, 3, 1.0)

	want := []string{"exact", "near", "mid"}
	if len(out) != 3 {
		t.Fatalf("expected 3 selections, got %v", out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("lambda=1 must rank by pure relevance, got %v want %v", out, want)
		}
	}
}

func TestMMRLambdaZeroAvoidsDuplicates(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},
		{1, 0}, // exact duplicate of the seed
		{0, 1},
	}
	ids := []string{"a", "dup", "b"}

	out := mmrSelect(query, candidates, ids, nil, 2, 0.0)

	if out[0] != "a" {
		t.Fatalf("seed must be the most relevant candidate, got %v", out)
	}
	if out[1] != "b" {
		t.Fatalf("lambda=0 must not pick the duplicate second, got %v", out)
	}
}

func TestMMRBoostChangesSeed(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.9, 0.1},
		{0.9, 0.1},
	}
	ids := []string{"plain", "boosted"}
	boosts := []float64{0, 0.2}

	out := mmrSelect(query, candidates, ids, boosts, 1, 0.7)
	if out[0] != "boosted" {
		t.Fatalf("boost must win between equally-similar candidates, got %v", out)
	}
}

func TestMMRHandlesDegenerateInput(t *testing.T) {
	if out := mmrSelect([]float32{1}, nil, nil, nil, 3, 0.5); out != nil {
		t.Fatalf("expected nil for empty candidates, got %v", out)
	}
	if out := mmrSelect([]float32{1}, [][]float32{{1}}, []string{"a"}, nil, 0, 0.5); out != nil {
		t.Fatalf("expected nil for k=0, got %v", out)
	}

	out := mmrSelect([]float32{1, 0}, [][]float32{{1, 0}}, []string{"only"}, nil, 3, 0.5)
	if len(out) != 1 || out[0] != "only" {
		t.Fatalf("k beyond corpus size must return everything once, got %v", out)
	}
}

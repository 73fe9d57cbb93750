package usecase

import "math"

// mmrSelect greedily picks up to k candidate ids maximizing relevance while
// penalizing redundancy against the already-selected set. Relevance is the
// cosine similarity to the query plus an optional additive boost per
// candidate; lambda=1 degenerates to pure top-k by relevance, lambda=0 to
// pure anti-redundancy. Cost is O(k*N) similarity comparisons, which is fine
// because N is the fetch width, not the corpus size.
func mmrSelect(query []float32, candidates [][]float32, ids []string, boosts []float64, k int, lambda float64) []string {
	n := len(candidates)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	relevance := make([]float64, n)
	for i, vec := range candidates {
		relevance[i] = cosine(query, vec)
		if boosts != nil {
			relevance[i] += boosts[i]
		}
	}

	selected := make([]int, 0, k)
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	// Seed with the most relevant candidate; first maximum wins ties so the
	// selection is deterministic.
	best := 0
	for i := 1; i < n; i++ {
		if relevance[i] > relevance[best] {
			best = i
		}
	}
	selected = append(selected, best)
	remaining = removeIndex(remaining, best)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for _, idx := range remaining {
			redundancy := math.Inf(-1)
			for _, sel := range selected {
				if sim := cosine(candidates[idx], candidates[sel]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[idx] - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = idx
			}
		}
		selected = append(selected, bestIdx)
		remaining = removeIndex(remaining, bestIdx)
	}

	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = ids[idx]
	}
	return out
}

func removeIndex(indices []int, value int) []int {
	for i, v := range indices {
		if v == value {
			return append(indices[:i], indices[i+1:]...)
		}
	}
	return indices
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func normalizeVector(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

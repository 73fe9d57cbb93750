package usecase

import (
	"sort"
	"strings"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

const (
	imageKeywordBonus    = 0.3
	imageProximityWeight = 0.2
	imageScoreThreshold  = 0.2
)

type imageHit struct {
	record domain.ImageRecord
	score  float64
}

// scoreImages fuses per-image semantic similarity, keyword match and
// page-proximity into one ranked list. Images scoring at or below the
// threshold are discarded; ties keep table scan order.
func scoreImages(
	queryVisual []float32,
	queryText string,
	images []domain.ImageRecord,
	retrievedPages map[int]struct{},
	pageWindow int,
	topK int,
) []imageHit {
	if len(images) == 0 || topK <= 0 {
		return nil
	}

	loweredQuery := strings.ToLower(queryText)
	hits := make([]imageHit, 0, len(images))
	for _, img := range images {
		score := 0.0

		if len(img.VisualEmbedding) > 0 && len(queryVisual) > 0 {
			score += cosine(queryVisual, img.VisualEmbedding)
		}

		if loweredQuery != "" {
			haystack := strings.ToLower(img.Caption + " " + img.OCRText)
			if strings.Contains(haystack, loweredQuery) {
				score += imageKeywordBonus
			}
		}

		if d, ok := minPageDistance(img.PageNum, retrievedPages); ok && d <= pageWindow {
			score += imageProximityWeight * (1 - float64(d)/float64(pageWindow+1))
		}

		if score > imageScoreThreshold {
			hits = append(hits, imageHit{record: img, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits
}

func minPageDistance(page int, pages map[int]struct{}) (int, bool) {
	min := -1
	for p := range pages {
		d := page - p
		if d < 0 {
			d = -d
		}
		if min < 0 || d < min {
			min = d
		}
	}
	if min < 0 {
		return 0, false
	}
	return min, true
}

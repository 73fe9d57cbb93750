package usecase

import (
	"testing"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

func TestImageKeywordBonusAppliesRegardlessOfSemanticScore(t *testing.T) {
	images := []domain.ImageRecord{
		{ID: "fig1", Caption: "Figure 1: enzyme diagram"},
	}

	hits := scoreImages(nil, "enzyme", images, nil, 1, 3)
	if len(hits) != 1 {
		t.Fatalf("expected keyword-only hit to survive, got %d", len(hits))
	}
	if hits[0].score != imageKeywordBonus {
		t.Fatalf("expected score %f, got %f", imageKeywordBonus, hits[0].score)
	}
}

func TestImageProximityBonusDecaysWithDistance(t *testing.T) {
	images := []domain.ImageRecord{
		{ID: "same-page", Caption: "starch granules", PageNum: 4},
		{ID: "next-page", Caption: "starch granules", PageNum: 5},
		{ID: "far-away", Caption: "starch granules", PageNum: 12},
	}
	pages := map[int]struct{}{4: {}}

	hits := scoreImages(nil, "starch", images, pages, 2, 3)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].record.ID != "same-page" || hits[1].record.ID != "next-page" {
		t.Fatalf("closer pages must rank higher: %v, %v", hits[0].record.ID, hits[1].record.ID)
	}
	// Outside the window the proximity term vanishes entirely.
	if hits[2].score != imageKeywordBonus {
		t.Fatalf("expected bare keyword score for distant image, got %f", hits[2].score)
	}
}

func TestImagesAtOrBelowThresholdDiscarded(t *testing.T) {
	images := []domain.ImageRecord{
		{ID: "weak", Caption: "unrelated chart", PageNum: 9},
	}
	hits := scoreImages(nil, "enzyme", images, map[int]struct{}{9: {}}, 1, 3)
	// Proximity alone yields exactly 0.2, which is not above the threshold.
	if len(hits) != 0 {
		t.Fatalf("expected threshold to discard proximity-only hit, got %v", hits)
	}
}

func TestImageSemanticSimilarityRanks(t *testing.T) {
	images := []domain.ImageRecord{
		{ID: "aligned", VisualEmbedding: []float32{1, 0}},
		{ID: "diagonal", VisualEmbedding: []float32{0.707, 0.707}},
	}

	hits := scoreImages([]float32{1, 0}, "", images, nil, 1, 1)
	if len(hits) != 1 {
		t.Fatalf("expected top-1 truncation, got %d hits", len(hits))
	}
	if hits[0].record.ID != "aligned" {
		t.Fatalf("expected semantically-aligned image first, got %s", hits[0].record.ID)
	}
}

package usecase

import (
	"context"
	"fmt"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
	"github.com/edgelearn/retrieval-engine/internal/core/ports"
)

type StatsUseCase struct {
	store   ports.MetadataStore
	dense   ports.DenseIndex
	lexical ports.LexicalIndex
	kg      ports.KnowledgeGraph
}

func NewStatsUseCase(
	store ports.MetadataStore,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	kg ports.KnowledgeGraph,
) *StatsUseCase {
	return &StatsUseCase{
		store:   store,
		dense:   dense,
		lexical: lexical,
		kg:      kg,
	}
}

func (uc *StatsUseCase) Stats(ctx context.Context) (*domain.Stats, error) {
	paragraphs, err := uc.store.CountParagraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("count paragraphs: %w", err)
	}
	images, err := uc.store.CountImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}
	relationships, err := uc.store.CountRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("count relationships: %w", err)
	}

	// Graph sizes are only meaningful once built; an unreachable store here
	// leaves them at zero rather than failing the whole report.
	_ = uc.kg.EnsureBuilt(ctx)
	nodes, edges := uc.kg.Sizes()

	return &domain.Stats{
		Paragraphs:    paragraphs,
		Images:        images,
		Relationships: relationships,
		DenseVectors:  uc.dense.Size(),
		LexicalDocs:   uc.lexical.Size(),
		GraphNodes:    nodes,
		GraphEdges:    edges,
	}, nil
}

package usecase

import (
	"context"
	"fmt"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
	"github.com/edgelearn/retrieval-engine/internal/core/ports"
)

type RebuildIndexUseCase struct {
	store    ports.MetadataStore
	dense    ports.DenseIndex
	lexical  ports.LexicalIndex
	kg       ports.KnowledgeGraph
	embedder ports.Embedder
}

func NewRebuildIndexUseCase(
	store ports.MetadataStore,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	kg ports.KnowledgeGraph,
	embedder ports.Embedder,
) *RebuildIndexUseCase {
	return &RebuildIndexUseCase{
		store:    store,
		dense:    dense,
		lexical:  lexical,
		kg:       kg,
		embedder: embedder,
	}
}

// Rebuild replaces the dense and lexical indexes from pre-computed embeddings.
// Vectors are normalized so the inner-product index behaves as cosine search.
func (uc *RebuildIndexUseCase) Rebuild(ctx context.Context, embeddings [][]float32, records []domain.ParagraphRecord) error {
	if len(embeddings) != len(records) {
		return domain.WrapError(domain.ErrInvalidInput, "rebuild indexes",
			fmt.Errorf("%d embeddings for %d records", len(embeddings), len(records)))
	}

	normalized := make([][]float32, len(embeddings))
	for i, vec := range embeddings {
		normalized[i] = normalizeVector(vec)
	}

	if err := uc.dense.Rebuild(ctx, normalized, records); err != nil {
		return fmt.Errorf("rebuild dense index: %w", err)
	}
	if err := uc.lexical.Rebuild(ctx, records); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	uc.kg.Invalidate()
	return nil
}

// RebuildFromStore re-embeds the whole stored corpus and rebuilds both
// indexes. An empty corpus is a no-op, not an error.
func (uc *RebuildIndexUseCase) RebuildFromStore(ctx context.Context) error {
	records, err := uc.store.ListParagraphs(ctx)
	if err != nil {
		return fmt.Errorf("list paragraphs: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	embeddings, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	return uc.Rebuild(ctx, embeddings, records)
}

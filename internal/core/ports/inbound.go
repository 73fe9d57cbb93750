package ports

import (
	"context"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

// ContentIngestor is the inbound contract for the extraction pipeline.
type ContentIngestor interface {
	PutParagraphs(ctx context.Context, recs []domain.ParagraphRecord) (int, error)
	PutImages(ctx context.Context, recs []domain.ImageRecord) (int, error)
}

// IndexRebuilder rebuilds the dense and lexical indexes as a pair.
type IndexRebuilder interface {
	Rebuild(ctx context.Context, embeddings [][]float32, records []domain.ParagraphRecord) error
	RebuildFromStore(ctx context.Context) error
}

// Retriever answers a query with assembled text contexts and image paths.
type Retriever interface {
	Retrieve(ctx context.Context, query string, vectors domain.QueryVectors, textTopK, imageTopK int) (*domain.RetrievalResult, error)
}

// StatsProvider reports corpus and index sizes.
type StatsProvider interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

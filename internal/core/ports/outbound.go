package ports

import (
	"context"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

// MetadataStore persists content records and their relationship edges.
// A record and its edges are written atomically; partial writes are never
// observable by readers.
type MetadataStore interface {
	PutParagraph(ctx context.Context, rec domain.ParagraphRecord) error
	PutImage(ctx context.Context, rec domain.ImageRecord) error
	GetTags(ctx context.Context, contentID string) ([]string, error)
	QueryRelationships(ctx context.Context, relType domain.RelationType, filter domain.RelationshipFilter) ([]domain.RelationshipEdge, error)
	ListParagraphs(ctx context.Context) ([]domain.ParagraphRecord, error)
	GetParagraphs(ctx context.Context, ids []string) ([]domain.ParagraphRecord, error)
	ListImages(ctx context.Context) ([]domain.ImageRecord, error)
	CountParagraphs(ctx context.Context) (int, error)
	CountImages(ctx context.Context) (int, error)
	CountRelationships(ctx context.Context) (int, error)
}

// DenseIndex is the nearest-neighbor index over normalized text embeddings.
type DenseIndex interface {
	// Rebuild replaces the index and its position map as a pair. An empty
	// batch is an ErrInvalidInput and leaves persisted state untouched.
	Rebuild(ctx context.Context, embeddings [][]float32, records []domain.ParagraphRecord) error
	// Search returns up to k hits ordered by descending inner product.
	// An unbuilt index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedParagraph, error)
	Size() int
}

// LexicalIndex is the BM25 keyword index over paragraph text.
type LexicalIndex interface {
	Rebuild(ctx context.Context, paragraphs []domain.ParagraphRecord) error
	Search(ctx context.Context, query string, k int) ([]domain.LexicalHit, error)
	// ScoreFor returns the BM25 score of one indexed paragraph for a query,
	// 0 when the paragraph is not in the corpus.
	ScoreFor(paragraphID, query string) float64
	Size() int
}

// KnowledgeGraph is the in-memory tag graph derived from store relationships.
type KnowledgeGraph interface {
	// EnsureBuilt builds the graph on first use; subsequent calls are no-ops
	// until Invalidate.
	EnsureBuilt(ctx context.Context) error
	Invalidate()
	BoostScore(contentID string, queryTerms []string) float64
	Expand(initialIDs []string, maxAdditional int) []string
	RelatedImages(contentIDs []string, topK int) []string
	Sizes() (nodes, edges int)
}

// Embedder computes vectors via the external embedding service.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedVisualQuery projects query text into the visual embedding space
	// shared with image embeddings.
	EmbedVisualQuery(ctx context.Context, text string) ([]float32, error)
}

// ImageMaterializer writes an image payload to a retrievable location.
// Materialization is idempotent per image id.
type ImageMaterializer interface {
	Materialize(ctx context.Context, img domain.ImageRecord) (string, error)
}

// MessageQueue publishes/consumes corpus-updated events.
type MessageQueue interface {
	PublishCorpusUpdated(ctx context.Context, sourceDocument string) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context, string) error) error
}

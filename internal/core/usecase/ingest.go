package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
	"github.com/edgelearn/retrieval-engine/internal/core/ports"
)

type IngestContentUseCase struct {
	store ports.MetadataStore
	queue ports.MessageQueue
	kg    ports.KnowledgeGraph
}

func NewIngestContentUseCase(
	store ports.MetadataStore,
	queue ports.MessageQueue,
	kg ports.KnowledgeGraph,
) *IngestContentUseCase {
	return &IngestContentUseCase{
		store: store,
		queue: queue,
		kg:    kg,
	}
}

// PutParagraphs persists a batch of paragraph records. Each record is written
// atomically with its relationship edges; a record that fails validation or
// storage is skipped without aborting the batch. Returns the number stored and
// the joined per-item failures.
func (uc *IngestContentUseCase) PutParagraphs(ctx context.Context, recs []domain.ParagraphRecord) (int, error) {
	stored := 0
	var failures []error
	docs := make(map[string]struct{})

	for i, rec := range recs {
		if err := validateParagraph(rec); err != nil {
			failures = append(failures, fmt.Errorf("paragraph %d: %w", i, err))
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.Tags = trimTags(rec.Tags)

		if err := uc.store.PutParagraph(ctx, rec); err != nil {
			failures = append(failures, fmt.Errorf("paragraph %s: %w", rec.ID, err))
			continue
		}
		stored++
		docs[rec.SourceDocument] = struct{}{}
	}

	if stored > 0 {
		uc.afterWrite(ctx, docs, &failures)
	}
	return stored, errors.Join(failures...)
}

// PutImages is the image counterpart of PutParagraphs.
func (uc *IngestContentUseCase) PutImages(ctx context.Context, recs []domain.ImageRecord) (int, error) {
	stored := 0
	var failures []error
	docs := make(map[string]struct{})

	for i, rec := range recs {
		if err := validateImage(rec); err != nil {
			failures = append(failures, fmt.Errorf("image %d: %w", i, err))
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.Tags = trimTags(rec.Tags)

		if err := uc.store.PutImage(ctx, rec); err != nil {
			failures = append(failures, fmt.Errorf("image %s: %w", rec.ID, err))
			continue
		}
		stored++
		docs[rec.SourceDocument] = struct{}{}
	}

	if stored > 0 {
		uc.afterWrite(ctx, docs, &failures)
	}
	return stored, errors.Join(failures...)
}

// afterWrite invalidates the lazily-built graph and announces the changed
// documents. A publish failure does not undo the stored records.
func (uc *IngestContentUseCase) afterWrite(ctx context.Context, docs map[string]struct{}, failures *[]error) {
	uc.kg.Invalidate()
	for doc := range docs {
		if err := uc.queue.PublishCorpusUpdated(ctx, doc); err != nil {
			*failures = append(*failures, fmt.Errorf("publish corpus event for %s: %w", doc, err))
		}
	}
}

func validateParagraph(rec domain.ParagraphRecord) error {
	if rec.Text == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate paragraph", errors.New("text is required"))
	}
	if rec.SourceDocument == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate paragraph", errors.New("source document is required"))
	}
	if rec.PageNum < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate paragraph", fmt.Errorf("page_num %d is negative", rec.PageNum))
	}
	return nil
}

func validateImage(rec domain.ImageRecord) error {
	if rec.Caption == "" && rec.OCRText == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate image", errors.New("caption or ocr text is required"))
	}
	if rec.SourceDocument == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate image", errors.New("source document is required"))
	}
	if rec.PageNum < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate image", fmt.Errorf("page_num %d is negative", rec.PageNum))
	}
	return nil
}

func trimTags(tags []string) []string {
	if len(tags) > domain.MaxTagsPerRecord {
		return tags[:domain.MaxTagsPerRecord]
	}
	return tags
}

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
	"github.com/edgelearn/retrieval-engine/internal/core/ports"
)

const (
	defaultTextTopK  = 5
	defaultImageTopK = 3
)

// RetrieveOptions tune the orchestrator. Zero values fall back to the
// defaults noted per field.
type RetrieveOptions struct {
	// FetchK is the dense overfetch width; <= TextTopK means 3x TextTopK.
	FetchK int
	// DiversityLambda is the MMR relevance/diversity trade-off in [0,1].
	DiversityLambda float64
	// MaxExpansion caps graph-expanded additions per query.
	MaxExpansion int
	// PageWindow is the image proximity window in pages.
	PageWindow int
	// RankExpanded orders expanded paragraphs by lexical score before
	// appending instead of keeping graph traversal order.
	RankExpanded bool
}

type RetrieveUseCase struct {
	store        ports.MetadataStore
	dense        ports.DenseIndex
	lexical      ports.LexicalIndex
	kg           ports.KnowledgeGraph
	embedder     ports.Embedder
	materializer ports.ImageMaterializer
	opts         RetrieveOptions
}

func NewRetrieveUseCase(
	store ports.MetadataStore,
	dense ports.DenseIndex,
	lexical ports.LexicalIndex,
	kg ports.KnowledgeGraph,
	embedder ports.Embedder,
	materializer ports.ImageMaterializer,
	opts RetrieveOptions,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		store:        store,
		dense:        dense,
		lexical:      lexical,
		kg:           kg,
		embedder:     embedder,
		materializer: materializer,
		opts:         opts,
	}
}

// Retrieve answers a query with ranked text contexts and materialized image
// paths. A sub-index being empty or unavailable degrades the answer instead
// of failing it; the only hard errors are contract violations.
func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	vectors domain.QueryVectors,
	textTopK, imageTopK int,
) (*domain.RetrievalResult, error) {
	if textTopK <= 0 {
		textTopK = defaultTextTopK
	}
	if imageTopK <= 0 {
		imageTopK = defaultImageTopK
	}

	kgAvailable := uc.kg.EnsureBuilt(ctx) == nil

	selected, err := uc.selectText(ctx, query, vectors.Text, textTopK, kgAvailable)
	if err != nil {
		return nil, err
	}

	selectedIDs := make([]string, len(selected))
	retrievedPages := make(map[int]struct{}, len(selected))
	for i, p := range selected {
		selectedIDs[i] = p.ID
		retrievedPages[p.PageNum] = struct{}{}
	}

	// Expansion and image scoring only read the finished text selection, so
	// they run concurrently. Both legs degrade to empty on failure.
	var (
		expanded   []domain.RetrievedParagraph
		imagePaths []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if kgAvailable {
			expanded = uc.expandSelection(gctx, query, selectedIDs)
		}
		return nil
	})
	g.Go(func() error {
		imagePaths = uc.collectImages(gctx, query, vectors.Visual, selectedIDs, retrievedPages, imageTopK, kgAvailable)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.RetrievalResult{
		Contexts:   make([]string, 0, len(selected)+len(expanded)),
		Sources:    make([]domain.SourceRef, 0, len(selected)+len(expanded)),
		ImagePaths: imagePaths,
	}
	for _, p := range append(selected, expanded...) {
		result.Contexts = append(result.Contexts, p.Text)
		result.Sources = append(result.Sources, domain.SourceRef{
			ID:             p.ID,
			SourceDocument: p.SourceDocument,
			PageNum:        p.PageNum,
			Expanded:       p.Expanded,
		})
	}
	return result, nil
}

// selectText runs the dense overfetch, graph boosting and MMR selection.
// When no query vector can be obtained or the dense index is empty it falls
// back to plain lexical ranking.
func (uc *RetrieveUseCase) selectText(
	ctx context.Context,
	query string,
	textVector []float32,
	textTopK int,
	kgAvailable bool,
) ([]domain.RetrievedParagraph, error) {
	queryVec := textVector
	if len(queryVec) == 0 {
		embedded, err := uc.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return uc.lexicalFallback(ctx, query, textTopK)
		}
		queryVec = embedded
	}
	queryVec = normalizeVector(queryVec)

	fetchK := uc.opts.FetchK
	if fetchK <= textTopK {
		fetchK = textTopK * 3
	}
	candidates, err := uc.dense.Search(ctx, queryVec, fetchK)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	if len(candidates) == 0 {
		return uc.lexicalFallback(ctx, query, textTopK)
	}

	ids := make([]string, len(candidates))
	embeddings := make([][]float32, len(candidates))
	byID := make(map[string]domain.RetrievedParagraph, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		embeddings[i] = c.Embedding
		byID[c.ID] = c
	}

	var boosts []float64
	if kgAvailable {
		terms := strings.Fields(strings.ToLower(query))
		boosts = make([]float64, len(candidates))
		for i, c := range candidates {
			boosts[i] = uc.kg.BoostScore(c.ID, terms)
		}
	}

	lambda := uc.opts.DiversityLambda
	if lambda <= 0 || lambda > 1 {
		lambda = 0.7
	}
	selectedIDs := mmrSelect(queryVec, embeddings, ids, boosts, textTopK, lambda)

	selected := make([]domain.RetrievedParagraph, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		selected = append(selected, byID[id])
	}
	return selected, nil
}

func (uc *RetrieveUseCase) lexicalFallback(ctx context.Context, query string, textTopK int) ([]domain.RetrievedParagraph, error) {
	hits, err := uc.lexical.Search(ctx, query, textTopK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	selected := make([]domain.RetrievedParagraph, 0, len(hits))
	for _, hit := range hits {
		selected = append(selected, domain.RetrievedParagraph{
			ID:             hit.Paragraph.ID,
			Text:           hit.Paragraph.Text,
			SourceDocument: hit.Paragraph.SourceDocument,
			PageNum:        hit.Paragraph.PageNum,
			Score:          hit.Score,
		})
	}
	return selected, nil
}

// expandSelection pulls same-tag neighbors of the selected paragraphs from
// the graph, bounded by MaxExpansion. Expanded items keep graph traversal
// order unless RankExpanded re-orders them by lexical score.
func (uc *RetrieveUseCase) expandSelection(ctx context.Context, query string, selectedIDs []string) []domain.RetrievedParagraph {
	if uc.opts.MaxExpansion <= 0 || len(selectedIDs) == 0 {
		return nil
	}
	expandedIDs := uc.kg.Expand(selectedIDs, uc.opts.MaxExpansion)
	added := expandedIDs[len(selectedIDs):]
	if len(added) == 0 {
		return nil
	}

	records, err := uc.store.GetParagraphs(ctx, added)
	if err != nil {
		return nil
	}
	order := make(map[string]int, len(added))
	for i, id := range added {
		order[id] = i
	}
	sort.SliceStable(records, func(i, j int) bool { return order[records[i].ID] < order[records[j].ID] })

	if uc.opts.RankExpanded {
		scores := make(map[string]float64, len(records))
		for _, rec := range records {
			scores[rec.ID] = uc.lexical.ScoreFor(rec.ID, query)
		}
		sort.SliceStable(records, func(i, j int) bool { return scores[records[i].ID] > scores[records[j].ID] })
	}

	expanded := make([]domain.RetrievedParagraph, 0, len(records))
	for _, rec := range records {
		expanded = append(expanded, domain.RetrievedParagraph{
			ID:             rec.ID,
			Text:           rec.Text,
			SourceDocument: rec.SourceDocument,
			PageNum:        rec.PageNum,
			Expanded:       true,
		})
	}
	return expanded
}

// collectImages scores the stored images against the query and materializes
// the winners. When the hybrid scorer finds nothing, images sharing tags with
// the selected paragraphs stand in. Any failure in this leg yields fewer
// images, never an error.
func (uc *RetrieveUseCase) collectImages(
	ctx context.Context,
	query string,
	visualVector []float32,
	selectedIDs []string,
	retrievedPages map[int]struct{},
	imageTopK int,
	kgAvailable bool,
) []string {
	images, err := uc.store.ListImages(ctx)
	if err != nil || len(images) == 0 {
		return nil
	}

	if len(visualVector) == 0 {
		// Best effort; keyword and proximity signals still apply without it.
		visualVector, _ = uc.embedder.EmbedVisualQuery(ctx, query)
	}

	hits := scoreImages(visualVector, query, images, retrievedPages, uc.opts.PageWindow, imageTopK)

	selected := make([]domain.ImageRecord, 0, len(hits))
	for _, hit := range hits {
		selected = append(selected, hit.record)
	}
	if len(selected) == 0 && kgAvailable {
		byID := make(map[string]domain.ImageRecord, len(images))
		for _, img := range images {
			byID[img.ID] = img
		}
		for _, id := range uc.kg.RelatedImages(selectedIDs, imageTopK) {
			if img, ok := byID[id]; ok {
				selected = append(selected, img)
			}
		}
	}

	paths := make([]string, 0, len(selected))
	for _, img := range selected {
		path, err := uc.materializer.Materialize(ctx, img)
		if err != nil {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

package usecase

import (
	"context"
	"fmt"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

type storeFake struct {
	paragraphs []domain.ParagraphRecord
	images     []domain.ImageRecord

	putParagraphErr map[string]error
	putImageErr     map[string]error
	listErr         error
}

func (s *storeFake) PutParagraph(_ context.Context, rec domain.ParagraphRecord) error {
	if err := s.putParagraphErr[rec.ID]; err != nil {
		return err
	}
	s.paragraphs = append(s.paragraphs, rec)
	return nil
}

func (s *storeFake) PutImage(_ context.Context, rec domain.ImageRecord) error {
	if err := s.putImageErr[rec.ID]; err != nil {
		return err
	}
	s.images = append(s.images, rec)
	return nil
}

func (s *storeFake) GetTags(context.Context, string) ([]string, error) { return nil, nil }

func (s *storeFake) QueryRelationships(context.Context, domain.RelationType, domain.RelationshipFilter) ([]domain.RelationshipEdge, error) {
	return nil, nil
}

func (s *storeFake) ListParagraphs(context.Context) ([]domain.ParagraphRecord, error) {
	return s.paragraphs, s.listErr
}

func (s *storeFake) GetParagraphs(_ context.Context, ids []string) ([]domain.ParagraphRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.ParagraphRecord
	for _, rec := range s.paragraphs {
		if _, ok := want[rec.ID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *storeFake) ListImages(context.Context) ([]domain.ImageRecord, error) {
	return s.images, s.listErr
}

func (s *storeFake) CountParagraphs(context.Context) (int, error) { return len(s.paragraphs), nil }
func (s *storeFake) CountImages(context.Context) (int, error)     { return len(s.images), nil }
func (s *storeFake) CountRelationships(context.Context) (int, error) {
	return 0, nil
}

type denseFake struct {
	results   []domain.RetrievedParagraph
	searchK   int
	searchErr error

	rebuiltVectors [][]float32
	rebuiltRecords []domain.ParagraphRecord
	rebuildErr     error
}

func (d *denseFake) Rebuild(_ context.Context, embeddings [][]float32, records []domain.ParagraphRecord) error {
	if d.rebuildErr != nil {
		return d.rebuildErr
	}
	d.rebuiltVectors = embeddings
	d.rebuiltRecords = records
	return nil
}

func (d *denseFake) Search(_ context.Context, _ []float32, k int) ([]domain.RetrievedParagraph, error) {
	d.searchK = k
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	if k < len(d.results) {
		return d.results[:k], nil
	}
	return d.results, nil
}

func (d *denseFake) Size() int { return len(d.rebuiltRecords) }

type lexicalFake struct {
	hits      []domain.LexicalHit
	scores    map[string]float64
	searchErr error

	rebuiltRecords []domain.ParagraphRecord
}

func (l *lexicalFake) Rebuild(_ context.Context, records []domain.ParagraphRecord) error {
	l.rebuiltRecords = records
	return nil
}

func (l *lexicalFake) Search(_ context.Context, _ string, k int) ([]domain.LexicalHit, error) {
	if l.searchErr != nil {
		return nil, l.searchErr
	}
	if k < len(l.hits) {
		return l.hits[:k], nil
	}
	return l.hits, nil
}

func (l *lexicalFake) ScoreFor(paragraphID, _ string) float64 { return l.scores[paragraphID] }

func (l *lexicalFake) Size() int { return len(l.rebuiltRecords) }

type kgFake struct {
	ensureErr     error
	invalidations int
	boosts        map[string]float64
	additions     []string
	related       []string
	nodes, edges  int
}

func (k *kgFake) EnsureBuilt(context.Context) error { return k.ensureErr }
func (k *kgFake) Invalidate()                       { k.invalidations++ }

func (k *kgFake) BoostScore(contentID string, _ []string) float64 { return k.boosts[contentID] }

func (k *kgFake) Expand(initialIDs []string, maxAdditional int) []string {
	out := append([]string{}, initialIDs...)
	for _, id := range k.additions {
		if maxAdditional <= 0 {
			break
		}
		out = append(out, id)
		maxAdditional--
	}
	return out
}

func (k *kgFake) RelatedImages(_ []string, topK int) []string {
	if topK < len(k.related) {
		return k.related[:topK]
	}
	return k.related
}

func (k *kgFake) Sizes() (int, int) { return k.nodes, k.edges }

type embedderFake struct {
	queryVec  []float32
	visualVec []float32
	batchErr  error
	queryErr  error
	visualErr error

	embeddedTexts []string
}

func (e *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	e.embeddedTexts = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{3, 4}
	}
	return out, nil
}

func (e *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.queryVec, nil
}

func (e *embedderFake) EmbedVisualQuery(context.Context, string) ([]float32, error) {
	if e.visualErr != nil {
		return nil, e.visualErr
	}
	return e.visualVec, nil
}

type materializerFake struct {
	failFor map[string]error
	calls   []string
}

func (m *materializerFake) Materialize(_ context.Context, img domain.ImageRecord) (string, error) {
	if err := m.failFor[img.ID]; err != nil {
		return "", err
	}
	m.calls = append(m.calls, img.ID)
	return fmt.Sprintf("/images/%s.png", img.ID), nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (q *queueFake) PublishCorpusUpdated(_ context.Context, sourceDocument string) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, sourceDocument)
	return nil
}

func (q *queueFake) SubscribeCorpusUpdated(context.Context, func(context.Context, string) error) error {
	return nil
}

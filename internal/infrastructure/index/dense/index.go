package dense

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

const (
	artifactFile = "dense_index.gob"
	idMapFile    = "dense_id_map.json"
)

// entry is one row of the position→record map. Array order is insertion
// order in the most recent rebuild.
type entry struct {
	ParagraphID    string `json:"paragraph_id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
	PageNum        int    `json:"page_num"`
}

type artifact struct {
	Dim     int
	Vectors [][]float32
}

type snapshot struct {
	dim     int
	vectors [][]float32
	entries []entry
}

// Index is a flat inner-product index over pre-normalized text embeddings.
// Rebuilds assemble a full replacement snapshot off to the side, persist it,
// and only then swap the in-memory handle; concurrent searches observe
// either the old or the new snapshot, never a partial one.
type Index struct {
	dir string

	mu   sync.RWMutex
	snap *snapshot
}

func New(dir string) *Index {
	return &Index{dir: dir}
}

// Load restores the persisted artifact and id map as a pair. A missing pair
// leaves the index unbuilt; a half-missing pair is an error because the two
// files are only ever written together.
func (ix *Index) Load() error {
	artifactPath := filepath.Join(ix.dir, artifactFile)
	mapPath := filepath.Join(ix.dir, idMapFile)

	_, artErr := os.Stat(artifactPath)
	_, mapErr := os.Stat(mapPath)
	if errors.Is(artErr, os.ErrNotExist) && errors.Is(mapErr, os.ErrNotExist) {
		return nil
	}
	if artErr != nil || mapErr != nil {
		return fmt.Errorf("dense index artifacts out of sync: artifact=%v map=%v", artErr, mapErr)
	}

	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open dense artifact: %w", err)
	}
	defer f.Close()

	var art artifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return fmt.Errorf("decode dense artifact: %w", err)
	}

	raw, err := os.ReadFile(mapPath)
	if err != nil {
		return fmt.Errorf("read dense id map: %w", err)
	}
	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("decode dense id map: %w", err)
	}

	if len(entries) != len(art.Vectors) {
		return fmt.Errorf("dense id map size %d does not match vector count %d", len(entries), len(art.Vectors))
	}

	ix.mu.Lock()
	ix.snap = &snapshot{dim: art.Dim, vectors: art.Vectors, entries: entries}
	ix.mu.Unlock()
	return nil
}

// Rebuild replaces the index and its position map as a pair. An empty batch
// leaves both the in-memory snapshot and the persisted files untouched.
func (ix *Index) Rebuild(ctx context.Context, embeddings [][]float32, records []domain.ParagraphRecord) error {
	if len(embeddings) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "rebuild dense index", errors.New("empty embedding matrix"))
	}
	if len(embeddings) != len(records) {
		return domain.WrapError(domain.ErrInvalidInput, "rebuild dense index",
			fmt.Errorf("embeddings/records mismatch: %d/%d", len(embeddings), len(records)))
	}

	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) != dim {
			return domain.WrapError(domain.ErrDimensionMismatch, "rebuild dense index",
				fmt.Errorf("vector %d has dim %d, want %d", i, len(vec), dim))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := make([]entry, len(records))
	for i, rec := range records {
		entries[i] = entry{
			ParagraphID:    rec.ID,
			Text:           rec.Text,
			SourceDocument: rec.SourceDocument,
			PageNum:        rec.PageNum,
		}
	}
	next := &snapshot{dim: dim, vectors: embeddings, entries: entries}

	if err := ix.persist(next); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.snap = next
	ix.mu.Unlock()
	return nil
}

func (ix *Index) persist(snap *snapshot) error {
	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	artifactPath := filepath.Join(ix.dir, artifactFile)
	mapPath := filepath.Join(ix.dir, idMapFile)

	tmpArtifact := artifactPath + ".tmp"
	f, err := os.Create(tmpArtifact)
	if err != nil {
		return fmt.Errorf("create dense artifact: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(artifact{Dim: snap.dim, Vectors: snap.vectors}); err != nil {
		f.Close()
		return fmt.Errorf("encode dense artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close dense artifact: %w", err)
	}

	raw, err := json.Marshal(snap.entries)
	if err != nil {
		return fmt.Errorf("encode dense id map: %w", err)
	}
	tmpMap := mapPath + ".tmp"
	if err := os.WriteFile(tmpMap, raw, 0o644); err != nil {
		return fmt.Errorf("write dense id map: %w", err)
	}

	if err := os.Rename(tmpArtifact, artifactPath); err != nil {
		return fmt.Errorf("replace dense artifact: %w", err)
	}
	if err := os.Rename(tmpMap, mapPath); err != nil {
		return fmt.Errorf("replace dense id map: %w", err)
	}
	return nil
}

// Search returns up to k hits ordered by descending inner product. Callers
// must pass a vector of the indexed dimension; querying an unbuilt index
// returns an empty result.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedParagraph, error) {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()

	if snap == nil || len(snap.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != snap.dim {
		return nil, domain.WrapError(domain.ErrDimensionMismatch, "dense search",
			fmt.Errorf("query dim %d, index dim %d", len(query), snap.dim))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(snap.vectors))
	for i, vec := range snap.vectors {
		scores[i] = scored{pos: i, score: innerProduct(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]domain.RetrievedParagraph, 0, k)
	for _, s := range scores[:k] {
		e := snap.entries[s.pos]
		out = append(out, domain.RetrievedParagraph{
			ID:             e.ParagraphID,
			Text:           e.Text,
			SourceDocument: e.SourceDocument,
			PageNum:        e.PageNum,
			Score:          s.score,
			Embedding:      snap.vectors[s.pos],
		})
	}
	return out, nil
}

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.vectors)
}

func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

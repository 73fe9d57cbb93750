package lexical

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

const artifactFile = "lexical_index.gob"

// Okapi BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// persisted holds the corpus snapshot and the derived term statistics; both
// live in one artifact so they can never load out of step.
type persisted struct {
	Corpus      []domain.ParagraphRecord
	DocTermFreq []map[string]int
	DocLen      []int
	DocFreq     map[string]int
}

type snapshot struct {
	corpus      []domain.ParagraphRecord
	docTermFreq []map[string]int
	docLen      []int
	docFreq     map[string]int
	avgDocLen   float64
}

// Index is a BM25 term-frequency index over paragraph text. Rebuilds follow
// the same swap discipline as the dense index.
type Index struct {
	dir string

	mu   sync.RWMutex
	snap *snapshot
}

func New(dir string) *Index {
	return &Index{dir: dir}
}

func (ix *Index) Load() error {
	path := filepath.Join(ix.dir, artifactFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open lexical artifact: %w", err)
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return fmt.Errorf("decode lexical artifact: %w", err)
	}

	snap := &snapshot{
		corpus:      p.Corpus,
		docTermFreq: p.DocTermFreq,
		docLen:      p.DocLen,
		docFreq:     p.DocFreq,
		avgDocLen:   averageLen(p.DocLen),
	}
	ix.mu.Lock()
	ix.snap = snap
	ix.mu.Unlock()
	return nil
}

// Rebuild tokenizes the corpus and replaces the term statistics and corpus
// snapshot together.
func (ix *Index) Rebuild(ctx context.Context, paragraphs []domain.ParagraphRecord) error {
	if len(paragraphs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "rebuild lexical index", errors.New("empty corpus"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	docTermFreq := make([]map[string]int, len(paragraphs))
	docLen := make([]int, len(paragraphs))
	docFreq := make(map[string]int)

	for i, p := range paragraphs {
		tokens := tokenize(p.Text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		docTermFreq[i] = tf
		docLen[i] = len(tokens)
		for tok := range tf {
			docFreq[tok]++
		}
	}

	next := &snapshot{
		corpus:      paragraphs,
		docTermFreq: docTermFreq,
		docLen:      docLen,
		docFreq:     docFreq,
		avgDocLen:   averageLen(docLen),
	}

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
	path := filepath.Join(ix.dir, artifactFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create lexical artifact: %w", err)
	}
	p := persisted{
		Corpus:      snap.corpus,
		DocTermFreq: snap.docTermFreq,
		DocLen:      snap.docLen,
		DocFreq:     snap.docFreq,
	}
	if err := gob.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return fmt.Errorf("encode lexical artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close lexical artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace lexical artifact: %w", err)
	}
	return nil
}

// Search scores every corpus document against the query and returns the
// top-k hits with strictly positive score.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]domain.LexicalHit, error) {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()

	if snap == nil || len(snap.corpus) == 0 || k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, 0, len(snap.corpus))
	for i := range snap.corpus {
		s := snap.scoreDoc(i, queryTokens)
		if s > 0 {
			scores = append(scores, scored{pos: i, score: s})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]domain.LexicalHit, 0, k)
	for _, s := range scores[:k] {
		out = append(out, domain.LexicalHit{Paragraph: snap.corpus[s.pos], Score: s.score})
	}
	return out, nil
}

// ScoreFor returns the BM25 score of a single query against one paragraph id,
// or 0 when the paragraph is not in the corpus.
func (ix *Index) ScoreFor(paragraphID, query string) float64 {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()
	if snap == nil {
		return 0
	}
	for i := range snap.corpus {
		if snap.corpus[i].ID == paragraphID {
			return snap.scoreDoc(i, tokenize(query))
		}
	}
	return 0
}

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.corpus)
}

func (s *snapshot) scoreDoc(pos int, queryTokens []string) float64 {
	n := float64(len(s.corpus))
	lenNorm := bm25K1 * (1 - bm25B + bm25B*float64(s.docLen[pos])/s.avgDocLen)

	var score float64
	for _, tok := range queryTokens {
		tf := float64(s.docTermFreq[pos][tok])
		if tf == 0 {
			continue
		}
		df := float64(s.docFreq[tok])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * tf * (bm25K1 + 1) / (tf + lenNorm)
	}
	return score
}

// tokenize lowercases and splits on whitespace.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func averageLen(docLen []int) float64 {
	if len(docLen) == 0 {
		return 1
	}
	var sum int
	for _, l := range docLen {
		sum += l
	}
	avg := float64(sum) / float64(len(docLen))
	if avg <= 0 {
		return 1
	}
	return avg
}

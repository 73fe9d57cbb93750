package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

// tagMatchBoost is the fixed bonus applied when any query term matches one
// of a content node's tags. It is a flat bonus, not a similarity measure.
const tagMatchBoost = 0.2

type nodeKind uint8

const (
	kindParagraph nodeKind = iota
	kindImage
	kindEntity
)

// ContentSource provides the records the graph is derived from.
type ContentSource interface {
	ListParagraphs(ctx context.Context) ([]domain.ParagraphRecord, error)
	ListImages(ctx context.Context) ([]domain.ImageRecord, error)
}

// Index is an in-memory undirected graph linking paragraph and image nodes
// to their tag entities. It is a derived, rebuildable view of the metadata
// store; nodes and neighbor lists keep insertion order so traversal and
// tie-breaking are deterministic for a fixed build.
type Index struct {
	source ContentSource

	mu        sync.RWMutex
	built     bool
	kinds     map[string]nodeKind
	order     map[string]int
	adj       map[string][]string
	edgeCount int
}

func New(source ContentSource) *Index {
	return &Index{source: source}
}

// EnsureBuilt builds the graph on first use. It is idempotent until
// Invalidate is called.
func (g *Index) EnsureBuilt(ctx context.Context) error {
	g.mu.RLock()
	built := g.built
	g.mu.RUnlock()
	if built {
		return nil
	}
	return g.Build(ctx)
}

// Invalidate drops the graph so the next use rebuilds it from the store.
func (g *Index) Invalidate() {
	g.mu.Lock()
	g.built = false
	g.kinds = nil
	g.order = nil
	g.adj = nil
	g.edgeCount = 0
	g.mu.Unlock()
}

// Build constructs the graph from all paragraph and image records. A node's
// tags come from the record's persisted tags field.
func (g *Index) Build(ctx context.Context) error {
	paragraphs, err := g.source.ListParagraphs(ctx)
	if err != nil {
		return fmt.Errorf("load paragraphs for graph: %w", err)
	}
	images, err := g.source.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("load images for graph: %w", err)
	}

	b := newBuilder()
	for _, p := range paragraphs {
		b.addContent(p.ID, kindParagraph, p.Tags)
	}
	for _, img := range images {
		b.addContent(img.ID, kindImage, img.Tags)
	}

	g.mu.Lock()
	g.kinds = b.kinds
	g.order = b.order
	g.adj = b.adj
	g.edgeCount = b.edgeCount
	g.built = true
	g.mu.Unlock()
	return nil
}

type builder struct {
	kinds     map[string]nodeKind
	order     map[string]int
	adj       map[string][]string
	edgeSeen  map[[2]string]struct{}
	edgeCount int
}

func newBuilder() *builder {
	return &builder{
		kinds:    make(map[string]nodeKind),
		order:    make(map[string]int),
		adj:      make(map[string][]string),
		edgeSeen: make(map[[2]string]struct{}),
	}
}

func (b *builder) addNode(id string, kind nodeKind) {
	if _, ok := b.kinds[id]; ok {
		return
	}
	b.kinds[id] = kind
	b.order[id] = len(b.order)
}

func (b *builder) addContent(id string, kind nodeKind, tags []string) {
	b.addNode(id, kind)
	for _, tag := range tags {
		b.addNode(tag, kindEntity)
		key := [2]string{id, tag}
		if id > tag {
			key = [2]string{tag, id}
		}
		if _, ok := b.edgeSeen[key]; ok {
			continue
		}
		b.edgeSeen[key] = struct{}{}
		b.adj[id] = append(b.adj[id], tag)
		b.adj[tag] = append(b.adj[tag], id)
		b.edgeCount++
	}
}

// BoostScore returns the fixed tag-match bonus when any lowercased query
// term equals one of the content node's tags, else 0.
func (g *Index) BoostScore(contentID string, queryTerms []string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, tag := range g.adj[contentID] {
		if g.kinds[tag] != kindEntity {
			continue
		}
		for _, term := range queryTerms {
			if strings.ToLower(term) == tag {
				return tagMatchBoost
			}
		}
	}
	return 0
}

// Expand walks content→tag→content and admits paragraphs sharing a tag with
// the initial set, until maxAdditional new ids are admitted or candidates
// run out. The result always contains the full initial set.
func (g *Index) Expand(initialIDs []string, maxAdditional int) []string {
	out := make([]string, 0, len(initialIDs)+maxAdditional)
	seen := make(map[string]struct{}, len(initialIDs))
	for _, id := range initialIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if maxAdditional <= 0 {
		return out
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	entities := g.connectedEntities(initialIDs)
	added := 0
	for _, entity := range entities {
		for _, neighbor := range g.adj[entity] {
			if g.kinds[neighbor] != kindParagraph {
				continue
			}
			if _, ok := seen[neighbor]; ok {
				continue
			}
			seen[neighbor] = struct{}{}
			out = append(out, neighbor)
			added++
			if added >= maxAdditional {
				return out
			}
		}
	}
	return out
}

// RelatedImages scores images by the number of tags shared with any of the
// given content ids, descending, ties broken by node insertion order.
func (g *Index) RelatedImages(contentIDs []string, topK int) []string {
	if topK <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[string]int)
	for _, entity := range g.connectedEntities(contentIDs) {
		for _, neighbor := range g.adj[entity] {
			if g.kinds[neighbor] == kindImage {
				counts[neighbor]++
			}
		}
	}

	ranked := make([]string, 0, len(counts))
	for id := range counts {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return g.order[ranked[i]] < g.order[ranked[j]]
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked
}

// connectedEntities returns the entity neighbors of the given content ids
// in first-seen order. Callers hold at least a read lock.
func (g *Index) connectedEntities(contentIDs []string) []string {
	var entities []string
	seen := make(map[string]struct{})
	for _, id := range contentIDs {
		for _, neighbor := range g.adj[id] {
			if g.kinds[neighbor] != kindEntity {
				continue
			}
			if _, ok := seen[neighbor]; ok {
				continue
			}
			seen[neighbor] = struct{}{}
			entities = append(entities, neighbor)
		}
	}
	return entities
}

func (g *Index) Sizes() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.kinds), g.edgeCount
}

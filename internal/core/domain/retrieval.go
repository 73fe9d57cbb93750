package domain

// RetrievedParagraph is one dense-search candidate carried through boosting,
// MMR selection and expansion. Embedding is the indexed vector for the chunk,
// needed by the diversity ranker.
type RetrievedParagraph struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	SourceDocument string    `json:"source_document"`
	PageNum        int       `json:"page_num"`
	Score          float64   `json:"score"`
	Embedding      []float32 `json:"-"`
	Expanded       bool      `json:"expanded,omitempty"`
}

// LexicalHit is one BM25 result.
type LexicalHit struct {
	Paragraph ParagraphRecord `json:"paragraph"`
	Score     float64         `json:"score"`
}

// SourceRef points a returned context back at its record.
type SourceRef struct {
	ID             string `json:"id"`
	SourceDocument string `json:"source_document"`
	PageNum        int    `json:"page_num"`
	Expanded       bool   `json:"expanded,omitempty"`
}

// RetrievalResult is the assembled answer context for one query.
type RetrievalResult struct {
	Contexts   []string    `json:"contexts"`
	Sources    []SourceRef `json:"sources"`
	ImagePaths []string    `json:"image_paths"`
}

// QueryVectors carries pre-computed query embeddings. Either field may be
// empty; the orchestrator falls back to the external embedder.
type QueryVectors struct {
	Text   []float32
	Visual []float32
}

// Stats reports corpus and index sizes.
type Stats struct {
	Paragraphs    int `json:"paragraphs"`
	Images        int `json:"images"`
	Relationships int `json:"relationships"`
	DenseVectors  int `json:"dense_vectors"`
	LexicalDocs   int `json:"lexical_docs"`
	GraphNodes    int `json:"graph_nodes"`
	GraphEdges    int `json:"graph_edges"`
}

package domain

type RelationType string

const (
	RelationPartOf RelationType = "PART_OF"
	RelationHasTag RelationType = "HAS_TAG"
)

// MaxTagsPerRecord caps how many tags a record keeps at ingestion time.
const MaxTagsPerRecord = 5

// ParagraphRecord is one extracted text chunk. Records are immutable after
// ingestion; re-ingesting a document supersedes its records by id.
type ParagraphRecord struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Header         string   `json:"header,omitempty"`
	PageNum        int      `json:"page_num"`
	SourceDocument string   `json:"source_document"`
	Tags           []string `json:"tags,omitempty"`
	FullPageText   string   `json:"full_page_text,omitempty"`
}

// ImageRecord is one extracted figure. Data holds the encoded image payload;
// VisualEmbedding is pre-computed by the external embedder.
type ImageRecord struct {
	ID              string    `json:"id"`
	Caption         string    `json:"caption"`
	OCRText         string    `json:"ocr_text,omitempty"`
	Data            string    `json:"data,omitempty"`
	PageNum         int       `json:"page_num"`
	SourceDocument  string    `json:"source_document"`
	Tags            []string  `json:"tags,omitempty"`
	BoundingBox     []float64 `json:"bounding_box,omitempty"`
	VisualEmbedding []float32 `json:"visual_embedding,omitempty"`
}

// RelationshipEdge links a content record to its source document (PART_OF)
// or to a tag entity (HAS_TAG). Edges are unique per triple.
type RelationshipEdge struct {
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`
	Type     RelationType `json:"type"`
}

// RelationshipFilter narrows a relationship query. Empty fields match any.
type RelationshipFilter struct {
	SourceID string
	TargetID string
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

// MetadataRepository is the relational store for paragraph records, image
// records and relationship edges. Reads go straight to the pool; every
// mutating statement sequence (a record plus its edges) runs inside one
// transaction serialized by a process-wide write lock.
type MetadataRepository struct {
	db *sql.DB

	writeMu sync.Mutex
}

func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MetadataRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across ingester/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS paragraphs (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	header TEXT NOT NULL DEFAULT '',
	page_num INTEGER NOT NULL,
	source_document TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	full_page_text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS images (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	caption TEXT NOT NULL,
	ocr_text TEXT NOT NULL DEFAULT '',
	data TEXT NOT NULL DEFAULT '',
	page_num INTEGER NOT NULL,
	source_document TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	bounding_box JSONB,
	visual_embedding BYTEA
);

CREATE TABLE IF NOT EXISTS relationships (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relation_type TEXT NOT NULL,
	PRIMARY KEY (source_id, target_id, relation_type)
);

CREATE INDEX IF NOT EXISTS idx_paragraphs_doc_page ON paragraphs(source_document, page_num);
CREATE INDEX IF NOT EXISTS idx_images_doc_page ON images(source_document, page_num);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(relation_type, target_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// PutParagraph upserts a paragraph record and its PART_OF/HAS_TAG edges in
// one transaction. On error the record is not persisted at all.
func (r *MetadataRepository) PutParagraph(ctx context.Context, rec domain.ParagraphRecord) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(rec.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin paragraph tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO paragraphs (id, text, header, page_num, source_document, tags, full_page_text)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	text = EXCLUDED.text,
	header = EXCLUDED.header,
	page_num = EXCLUDED.page_num,
	source_document = EXCLUDED.source_document,
	tags = EXCLUDED.tags,
	full_page_text = EXCLUDED.full_page_text
`,
		rec.ID, rec.Text, rec.Header, rec.PageNum, rec.SourceDocument, tagsJSON, rec.FullPageText,
	)
	if err != nil {
		return fmt.Errorf("upsert paragraph: %w", err)
	}

	if err := insertEdges(ctx, tx, rec.ID, rec.SourceDocument, rec.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit paragraph tx: %w", err)
	}
	return nil
}

// PutImage upserts an image record and its edges in one transaction. The
// visual embedding is stored as little-endian float32 bytes.
func (r *MetadataRepository) PutImage(ctx context.Context, rec domain.ImageRecord) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(rec.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	var bboxJSON []byte
	if rec.BoundingBox != nil {
		bboxJSON, err = json.Marshal(rec.BoundingBox)
		if err != nil {
			return fmt.Errorf("marshal bounding box: %w", err)
		}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin image tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO images (id, caption, ocr_text, data, page_num, source_document, tags, bounding_box, visual_embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	caption = EXCLUDED.caption,
	ocr_text = EXCLUDED.ocr_text,
	data = EXCLUDED.data,
	page_num = EXCLUDED.page_num,
	source_document = EXCLUDED.source_document,
	tags = EXCLUDED.tags,
	bounding_box = EXCLUDED.bounding_box,
	visual_embedding = EXCLUDED.visual_embedding
`,
		rec.ID, rec.Caption, rec.OCRText, rec.Data, rec.PageNum, rec.SourceDocument,
		tagsJSON, bboxJSON, encodeEmbedding(rec.VisualEmbedding),
	)
	if err != nil {
		return fmt.Errorf("upsert image: %w", err)
	}

	if err := insertEdges(ctx, tx, rec.ID, rec.SourceDocument, rec.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit image tx: %w", err)
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, contentID, sourceDocument string, tags []string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO relationships (source_id, target_id, relation_type)
VALUES ($1,$2,$3)
ON CONFLICT DO NOTHING
`, contentID, sourceDocument, string(domain.RelationPartOf))
	if err != nil {
		return fmt.Errorf("insert part_of edge: %w", err)
	}

	for _, tag := range tags {
		_, err := tx.ExecContext(ctx, `
INSERT INTO relationships (source_id, target_id, relation_type)
VALUES ($1,$2,$3)
ON CONFLICT DO NOTHING
`, contentID, tag, string(domain.RelationHasTag))
		if err != nil {
			return fmt.Errorf("insert has_tag edge: %w", err)
		}
	}
	return nil
}

// GetTags returns the persisted tags of a paragraph or image. An unknown id
// yields an empty set, not an error.
func (r *MetadataRepository) GetTags(ctx context.Context, contentID string) ([]string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT tags FROM paragraphs WHERE id = $1
UNION ALL
SELECT tags FROM images WHERE id = $1
LIMIT 1
`, contentID)

	var tagsRaw []byte
	if err := row.Scan(&tagsRaw); err != nil {
		if err == sql.ErrNoRows {
			return []string{}, nil
		}
		return nil, fmt.Errorf("scan tags: %w", err)
	}

	var tags []string
	if err := json.Unmarshal(tagsRaw, &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

func (r *MetadataRepository) QueryRelationships(ctx context.Context, relType domain.RelationType, filter domain.RelationshipFilter) ([]domain.RelationshipEdge, error) {
	query := `SELECT source_id, target_id, relation_type FROM relationships WHERE relation_type = $1`
	args := []any{string(relType)}
	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		query += fmt.Sprintf(" AND source_id = $%d", len(args))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		query += fmt.Sprintf(" AND target_id = $%d", len(args))
	}
	query += " ORDER BY source_id, target_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []domain.RelationshipEdge
	for rows.Next() {
		var edge domain.RelationshipEdge
		var relType string
		if err := rows.Scan(&edge.SourceID, &edge.TargetID, &relType); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		edge.Type = domain.RelationType(relType)
		out = append(out, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return out, nil
}

// ListParagraphs returns the full paragraph corpus in insertion order.
func (r *MetadataRepository) ListParagraphs(ctx context.Context) ([]domain.ParagraphRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, header, page_num, source_document, tags, full_page_text
FROM paragraphs
ORDER BY seq
`)
	if err != nil {
		return nil, fmt.Errorf("query paragraphs: %w", err)
	}
	defer rows.Close()

	var out []domain.ParagraphRecord
	for rows.Next() {
		var rec domain.ParagraphRecord
		var tagsRaw []byte
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Header, &rec.PageNum, &rec.SourceDocument, &tagsRaw, &rec.FullPageText); err != nil {
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal paragraph tags: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paragraphs: %w", err)
	}
	return out, nil
}

// GetParagraphs fetches records by id, returned in insertion order. Missing
// ids are skipped, not errors.
func (r *MetadataRepository) GetParagraphs(ctx context.Context, ids []string) ([]domain.ParagraphRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT id, text, header, page_num, source_document, tags, full_page_text
FROM paragraphs
WHERE id IN (%s)
ORDER BY seq
`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query paragraphs by id: %w", err)
	}
	defer rows.Close()

	var out []domain.ParagraphRecord
	for rows.Next() {
		var rec domain.ParagraphRecord
		var tagsRaw []byte
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Header, &rec.PageNum, &rec.SourceDocument, &tagsRaw, &rec.FullPageText); err != nil {
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal paragraph tags: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paragraphs: %w", err)
	}
	return out, nil
}

// ListImages returns the full image table in insertion order, which the
// image scorer relies on for deterministic tie-breaking.
func (r *MetadataRepository) ListImages(ctx context.Context) ([]domain.ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, caption, ocr_text, data, page_num, source_document, tags, bounding_box, visual_embedding
FROM images
ORDER BY seq
`)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var out []domain.ImageRecord
	for rows.Next() {
		var rec domain.ImageRecord
		var tagsRaw, bboxRaw, embRaw []byte
		if err := rows.Scan(&rec.ID, &rec.Caption, &rec.OCRText, &rec.Data, &rec.PageNum, &rec.SourceDocument, &tagsRaw, &bboxRaw, &embRaw); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal image tags: %w", err)
		}
		if len(bboxRaw) > 0 {
			if err := json.Unmarshal(bboxRaw, &rec.BoundingBox); err != nil {
				return nil, fmt.Errorf("unmarshal bounding box: %w", err)
			}
		}
		rec.VisualEmbedding = decodeEmbedding(embRaw)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return out, nil
}

func (r *MetadataRepository) CountParagraphs(ctx context.Context) (int, error) {
	return r.countTable(ctx, "paragraphs")
}

func (r *MetadataRepository) CountImages(ctx context.Context) (int, error) {
	return r.countTable(ctx, "images")
}

func (r *MetadataRepository) CountRelationships(ctx context.Context) (int, error) {
	return r.countTable(ctx, "relationships")
}

func (r *MetadataRepository) countTable(ctx context.Context, table string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

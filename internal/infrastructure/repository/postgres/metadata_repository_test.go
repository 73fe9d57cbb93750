package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*MetadataRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &MetadataRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestPutParagraphWritesRecordAndEdgesAtomically(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO paragraphs").
		WithArgs("p1", "starch is a polysaccharide", "", 3, "bio.pdf", []byte(`["starch","polysaccharide"]`), "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("p1", "bio.pdf", string(domain.RelationPartOf)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("p1", "starch", string(domain.RelationHasTag)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("p1", "polysaccharide", string(domain.RelationHasTag)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.PutParagraph(context.Background(), domain.ParagraphRecord{
		ID:             "p1",
		Text:           "starch is a polysaccharide",
		PageNum:        3,
		SourceDocument: "bio.pdf",
		Tags:           []string{"starch", "polysaccharide"},
	})
	if err != nil {
		t.Fatalf("PutParagraph() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutParagraphRollsBackWhenEdgeInsertFails(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO paragraphs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO relationships").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.PutParagraph(context.Background(), domain.ParagraphRecord{
		ID:             "p1",
		Text:           "text",
		SourceDocument: "bio.pdf",
	})
	if err == nil {
		t.Fatalf("expected error when edge insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTagsReturnsEmptySetForUnknownID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT tags FROM paragraphs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"tags"}))

	tags, err := repo.GetTags(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTags() error = %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("expected empty tag set, got %v", tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTagsDecodesPersistedTags(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT tags FROM paragraphs").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"tags"}).AddRow([]byte(`["glucose"]`)))

	tags, err := repo.GetTags(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0] != "glucose" {
		t.Fatalf("expected [glucose], got %v", tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryRelationshipsAppliesFilter(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT source_id, target_id, relation_type FROM relationships").
		WithArgs(string(domain.RelationHasTag), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"source_id", "target_id", "relation_type"}).
			AddRow("p1", "starch", "HAS_TAG"))

	edges, err := repo.QueryRelationships(context.Background(), domain.RelationHasTag, domain.RelationshipFilter{SourceID: "p1"})
	if err != nil {
		t.Fatalf("QueryRelationships() error = %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "starch" || edges[0].Type != domain.RelationHasTag {
		t.Fatalf("unexpected edges: %+v", edges)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListImagesDecodesEmbedding(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	emb := encodeEmbedding([]float32{0.5, -1.25})
	mock.ExpectQuery("SELECT id, caption, ocr_text, data, page_num, source_document").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "caption", "ocr_text", "data", "page_num", "source_document", "tags", "bounding_box", "visual_embedding",
		}).AddRow("img1", "Figure 1", "enzyme", "", 4, "bio.pdf", []byte(`[]`), nil, emb))

	images, err := repo.ListImages(context.Background())
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	got := images[0].VisualEmbedding
	if len(got) != 2 || got[0] != 0.5 || got[1] != -1.25 {
		t.Fatalf("embedding round-trip mismatch: %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountTables(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountParagraphs(context.Background())
	if err != nil {
		t.Fatalf("CountParagraphs() error = %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

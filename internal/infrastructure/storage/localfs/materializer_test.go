package localfs

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

func testImage() domain.ImageRecord {
	return domain.ImageRecord{
		ID:             "img-1",
		Caption:        "Figure 1",
		Data:           base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		PageNum:        4,
		SourceDocument: "bio.pdf",
	}
}

func TestMaterializeWritesUnderDocumentAndPage(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	path, err := m.Materialize(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("bio.pdf", "page_4", "img-1.png")) {
		t.Fatalf("unexpected layout: %s", path)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read materialized file: %v", err)
	}
	if string(payload) != "png-bytes" {
		t.Fatalf("decoded payload mismatch: %q", payload)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	img := testImage()
	first, err := m.Materialize(context.Background(), img)
	if err != nil {
		t.Fatalf("first Materialize() error = %v", err)
	}

	// A second call must reuse the existing file, even with a broken payload.
	img.Data = "not-base64!"
	second, err := m.Materialize(context.Background(), img)
	if err != nil {
		t.Fatalf("second Materialize() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected same path, got %s and %s", first, second)
	}
}

func TestMaterializeRejectsMalformedPayload(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	img := testImage()
	img.ID = "img-2"
	img.Data = "not-base64!"
	if _, err := m.Materialize(context.Background(), img); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMaterializeSanitizesPathSegments(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	img := testImage()
	img.SourceDocument = "../escape attempt.pdf"
	path, err := m.Materialize(context.Background(), img)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if strings.Contains(path, "..") {
		t.Fatalf("path traversal not neutralized: %s", path)
	}
}

package localfs

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgelearn/retrieval-engine/internal/core/domain"
)

// Materializer writes image payloads under
// <basePath>/<source_document>/page_<n>/<id>.png. Image content is immutable
// once created, so an existing file is reused instead of rewritten; that
// makes concurrent duplicate requests for the same id safe.
type Materializer struct {
	basePath string
}

func New(basePath string) (*Materializer, error) {
	if basePath == "" {
		basePath = "./data/images"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Materializer{basePath: basePath}, nil
}

func (m *Materializer) Materialize(_ context.Context, img domain.ImageRecord) (string, error) {
	if img.ID == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "materialize image", fmt.Errorf("image id is empty"))
	}

	dir := filepath.Join(m.basePath, sanitizeSegment(img.SourceDocument), fmt.Sprintf("page_%d", img.PageNum))
	path := filepath.Join(dir, sanitizeSegment(img.ID)+".png")

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat image file: %w", err)
	}

	payload, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "materialize image", fmt.Errorf("decode payload: %w", err))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create page dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return path, nil
}

func sanitizeSegment(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "unknown"
	}
	return base
}

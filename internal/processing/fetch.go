package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/spacesedan/sentiscope/internal/models"
)

// DocumentSource returns up to limit documents posted by handle in the given
// language, most recent first. Failures are reported as *models.FetchError.
type DocumentSource interface {
	Fetch(ctx context.Context, handle string, limit int, language string) ([]models.RawDocument, error)
}

func (p *Pipeline) fetch(ctx context.Context, handle string, limit int) ([]models.RawDocument, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidLimit, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := p.source.Fetch(ctx, handle, limit, p.language)
	if err != nil {
		slog.Error("[Pipeline] Failed to fetch documents",
			slog.String("handle", handle),
			slog.Int("limit", limit),
			slog.String("error", err.Error()))
		return nil, err
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	slog.Debug("[Pipeline] Fetched documents",
		slog.String("handle", handle),
		slog.Int("count", len(docs)))
	return docs, nil
}

// validate splits docs into usable documents and skipped ones. The first
// document with a given ID wins.
func validate(docs []models.RawDocument) ([]models.RawDocument, []models.SkippedDocument) {
	valid := make([]models.RawDocument, 0, len(docs))
	skipped := []models.SkippedDocument{}
	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		if err := checkDocument(doc, seen); err != nil {
			md := &models.MalformedDocumentError{ID: doc.ID, Index: doc.Index, Err: err}
			skipped = append(skipped, md.Skipped())
			continue
		}
		seen[doc.ID] = struct{}{}
		valid = append(valid, doc)
	}
	return valid, skipped
}

func checkDocument(doc models.RawDocument, seen map[string]struct{}) error {
	if !utf8.ValidString(doc.Text) {
		return models.ErrInvalidEncoding
	}
	if strings.TrimSpace(doc.Text) == "" {
		return models.ErrEmptyText
	}
	if _, dup := seen[doc.ID]; dup {
		return models.ErrDuplicateID
	}
	return nil
}

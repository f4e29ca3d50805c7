package processing

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/sentiment"
	"golang.org/x/sync/errgroup"
)

const DefaultLanguage = "en"

// Mode selects how far a run goes past the fetch.
type Mode int

const (
	// ModeAnalyze normalizes, scores and classifies every valid document.
	ModeAnalyze Mode = iota
	// ModeRecent stops after validation and returns the raw documents.
	ModeRecent
)

func (m Mode) String() string {
	switch m {
	case ModeAnalyze:
		return "analyze"
	case ModeRecent:
		return "recent"
	default:
		return "unknown"
	}
}

// Result is the outcome of one run. Documents and Records are in retrieval
// order.
type Result struct {
	Handle    string                    `json:"handle"`
	Language  string                    `json:"language"`
	Documents []models.RawDocument      `json:"documents"`
	Records   []models.ClassifiedRecord `json:"records"`
	Skipped   []models.SkippedDocument  `json:"skipped"`
}

type Option func(*Pipeline)

func WithLanguage(lang string) Option {
	return func(p *Pipeline) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithWorkers bounds how many documents are scored at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

type Pipeline struct {
	source   DocumentSource
	scorer   sentiment.Scorer
	language string
	workers  int
}

func NewPipeline(source DocumentSource, scorer sentiment.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		scorer:   scorer,
		language: DefaultLanguage,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the full normalize, score and classify pass for handle.
func (p *Pipeline) Analyze(ctx context.Context, handle string, limit int) (Result, error) {
	return p.Run(ctx, handle, limit, ModeAnalyze)
}

// Recent fetches and validates the latest documents for handle without
// scoring them.
func (p *Pipeline) Recent(ctx context.Context, handle string, limit int) (Result, error) {
	return p.Run(ctx, handle, limit, ModeRecent)
}

// Run fetches up to limit documents for handle and processes them according
// to mode. Fetch errors are returned unchanged. Malformed documents are
// skipped and listed in Result.Skipped.
func (p *Pipeline) Run(ctx context.Context, handle string, limit int, mode Mode) (Result, error) {
	start := time.Now()
	result := Result{
		Handle:    handle,
		Language:  p.language,
		Documents: []models.RawDocument{},
		Records:   []models.ClassifiedRecord{},
		Skipped:   []models.SkippedDocument{},
	}

	docs, err := p.fetch(ctx, handle, limit)
	if err != nil {
		return Result{}, err
	}
	if len(docs) == 0 {
		slog.Info("[Pipeline] No documents to process", slog.String("handle", handle))
		return result, nil
	}

	// Normalization has not started yet, so a cancellation here still aborts.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	valid, skipped := validate(docs)
	result.Documents = valid
	result.Skipped = skipped

	if mode == ModeAnalyze {
		records, scoreSkips := p.classifyAll(valid)
		result.Records = records
		result.Skipped = mergeSkipped(skipped, scoreSkips)
	}

	for _, s := range result.Skipped {
		slog.Warn("[Pipeline] Skipped malformed document",
			slog.String("handle", handle),
			slog.String("id", s.ID),
			slog.Int("index", s.Index),
			slog.String("reason", s.Reason))
	}

	slog.Info("[Pipeline] Run complete",
		slog.String("handle", handle),
		slog.String("mode", mode.String()),
		slog.Int("fetched", len(docs)),
		slog.Int("records", len(result.Records)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

type slot struct {
	record models.ClassifiedRecord
	err    *models.MalformedDocumentError
}

// classifyAll processes docs on a bounded pool. Each worker writes into the
// slot of its document so completion order never leaks into the output.
func (p *Pipeline) classifyAll(docs []models.RawDocument) ([]models.ClassifiedRecord, []models.SkippedDocument) {
	slots := make([]slot, len(docs))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, doc := range docs {
		g.Go(func() error {
			rec, err := ProcessDocument(p.scorer, doc)
			if err != nil {
				slots[i].err = &models.MalformedDocumentError{ID: doc.ID, Index: doc.Index, Err: err}
				return nil
			}
			slots[i].record = rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]models.ClassifiedRecord, 0, len(docs))
	var skipped []models.SkippedDocument
	for _, s := range slots {
		if s.err != nil {
			skipped = append(skipped, s.err.Skipped())
			continue
		}
		records = append(records, s.record)
	}
	return records, skipped
}

// ProcessDocument takes one raw document through the three pure stages. A
// scorer panic is returned as ErrScorerFailure for that document.
func ProcessDocument(scorer sentiment.Scorer, doc models.RawDocument) (rec models.ClassifiedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Pipeline] Scorer panicked",
				slog.String("id", doc.ID),
				slog.Any("panic", r))
			rec, err = models.ClassifiedRecord{}, fmt.Errorf("%w: %v", models.ErrScorerFailure, r)
		}
	}()

	normalized := models.NormalizedDocument{ID: doc.ID, CleanedText: sentiment.Normalize(doc.Text)}

	subjectivity, polarity, err := scorer.Score(normalized.CleanedText)
	if err != nil {
		return models.ClassifiedRecord{}, err
	}
	scored := models.ScoredDocument{
		ID:           normalized.ID,
		CleanedText:  normalized.CleanedText,
		Subjectivity: subjectivity,
		Polarity:     polarity,
	}

	return models.ClassifiedRecord{
		ID:           scored.ID,
		CleanedText:  scored.CleanedText,
		Subjectivity: scored.Subjectivity,
		Polarity:     scored.Polarity,
		Label:        sentiment.Classify(scored.Polarity),
	}, nil
}

func mergeSkipped(a, b []models.SkippedDocument) []models.SkippedDocument {
	out := append(append([]models.SkippedDocument{}, a...), b...)
	slices.SortStableFunc(out, func(x, y models.SkippedDocument) int {
		return x.Index - y.Index
	})
	return out
}

// NewReport packages a finished analysis for presentation and export.
func NewReport(result Result) models.Report {
	return models.Report{
		ID:          uuid.NewString(),
		Handle:      result.Handle,
		Language:    result.Language,
		GeneratedAt: time.Now().UTC(),
		Records:     result.Records,
		Counts:      sentiment.Aggregate(result.Records),
		Skipped:     result.Skipped,
	}
}

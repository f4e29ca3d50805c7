package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/sentiscope/internal/models"
)

// Sink receives finished reports. Exports never alter the analysis itself.
type Sink interface {
	Name() string
	Export(ctx context.Context, report models.Report) error
}

// ExportAll hands report to every sink in turn. A failing sink does not stop
// the others; all failures are returned joined.
func ExportAll(ctx context.Context, report models.Report, sinks ...Sink) error {
	var errs []error
	for _, sink := range sinks {
		start := time.Now()
		if err := sink.Export(ctx, report); err != nil {
			slog.Error("[Export] Sink failed",
				slog.String("sink", sink.Name()),
				slog.String("report_id", report.ID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		slog.Info("[Export] Report exported",
			slog.String("sink", sink.Name()),
			slog.String("report_id", report.ID),
			slog.Int("records", len(report.Records)),
			slog.Duration("duration", time.Since(start)))
	}
	return errors.Join(errs...)
}

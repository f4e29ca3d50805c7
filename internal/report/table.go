package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spacesedan/sentiscope/internal/models"
)

// WriteTable prints one row per record in the order given.
func WriteTable(w io.Writer, records []models.ClassifiedRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLEANED TEXT\tSUBJECTIVITY\tPOLARITY\tLABEL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%s\n", singleLine(r.CleanedText), r.Subjectivity, r.Polarity, r.Label)
	}
	return tw.Flush()
}

// WriteDocuments prints fetched documents without scores.
func WriteDocuments(w io.Writer, docs []models.RawDocument) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCREATED\tTEXT")
	for _, d := range docs {
		created := "-"
		if !d.CreatedAt.IsZero() {
			created = d.CreatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.Index, d.ID, created, singleLine(d.Text))
	}
	return tw.Flush()
}

func singleLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '\t'
	}), " ")
}

package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/sentiscope/internal/models"
)

// mdEscaper backslash-escapes characters that would otherwise turn
// document text into markup or break a table row.
var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"~", `\~`,
	"&", `\&`,
)

func escapeCell(s string) string {
	s = mdEscaper.Replace(singleLine(s))
	if strings.TrimSpace(s) == "" {
		return " "
	}
	return s
}

// Markdown renders report as a Markdown document: a summary, a bar chart and
// the records table.
func Markdown(report models.Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Sentiment report for @%s\n\n", escapeCell(report.Handle))
	fmt.Fprintf(&b, "Generated %s. Language `%s`. %d documents analyzed",
		report.GeneratedAt.UTC().Format(time.RFC1123), report.Language, len(report.Records))
	if n := len(report.Skipped); n > 0 {
		fmt.Fprintf(&b, ", %d skipped", n)
	}
	b.WriteString(".\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("| Label | Count |\n|---|---:|\n")
	for _, l := range models.Labels() {
		fmt.Fprintf(&b, "| %s | %d |\n", l, report.Counts[l])
	}
	b.WriteString("\n```\n")
	b.WriteString(chart(report.Counts))
	b.WriteString("```\n\n")

	b.WriteString("## Documents\n\n")
	if len(report.Records) == 0 {
		b.WriteString("No documents found.\n")
	} else {
		b.WriteString("| Cleaned text | Subjectivity | Polarity | Label |\n|---|---:|---:|---|\n")
		for _, r := range report.Records {
			fmt.Fprintf(&b, "| %s | %.3f | %.3f | %s |\n",
				escapeCell(r.CleanedText), r.Subjectivity, r.Polarity, r.Label)
		}
	}

	if len(report.Skipped) > 0 {
		b.WriteString("\n## Skipped\n\n| Index | ID | Reason |\n|---:|---|---|\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", s.Index, escapeCell(s.ID), escapeCell(s.Reason))
		}
	}

	return b.Bytes()
}

// HTML renders the Markdown report as a complete HTML page. Raw HTML coming
// from document text is dropped.
func HTML(report models.Report) []byte {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Title: fmt.Sprintf("Sentiment report for @%s", html.EscapeString(report.Handle)),
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.CompletePage,
	})
	return blackfriday.Run(Markdown(report),
		blackfriday.WithRenderer(renderer),
		blackfriday.WithExtensions(blackfriday.CommonExtensions))
}

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/spacesedan/sentiscope/internal/models"
)

const chartWidth = 40

// WriteChart draws a horizontal bar per label in Labels() order. The longest
// bar is chartWidth wide.
func WriteChart(w io.Writer, counts models.AggregateCounts) error {
	_, err := io.WriteString(w, chart(counts))
	return err
}

func chart(counts models.AggregateCounts) string {
	peak := 0
	for _, l := range models.Labels() {
		peak = max(peak, counts[l])
	}

	var b strings.Builder
	for _, l := range models.Labels() {
		n := counts[l]
		bar := 0
		if peak > 0 {
			bar = n * chartWidth / peak
			if n > 0 && bar == 0 {
				bar = 1
			}
		}
		fmt.Fprintf(&b, "%-8s | %s %d\n", l, strings.Repeat("#", bar), n)
	}
	return b.String()
}

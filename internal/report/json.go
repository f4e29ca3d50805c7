package report

import (
	"encoding/json"
	"io"

	"github.com/spacesedan/sentiscope/internal/models"
)

func WriteJSON(w io.Writer, report models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

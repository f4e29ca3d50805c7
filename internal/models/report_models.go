package models

import "time"

// Report is a finished analysis run handed to presentation and result sinks.
type Report struct {
	ID          string             `json:"id"`
	Handle      string             `json:"handle"`
	Language    string             `json:"language"`
	GeneratedAt time.Time          `json:"generated_at"`
	Records     []ClassifiedRecord `json:"records"`
	Counts      AggregateCounts    `json:"counts"`
	Skipped     []SkippedDocument  `json:"skipped,omitempty"`
}

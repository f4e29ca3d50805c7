package models

import "time"

// RawDocument is a single post as delivered by a document source.
// Index is the 0-based retrieval position, most recent first.
type RawDocument struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Index     int       `json:"index"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type NormalizedDocument struct {
	ID          string `json:"id"`
	CleanedText string `json:"cleaned_text"`
}

type ScoredDocument struct {
	ID           string  `json:"id"`
	CleanedText  string  `json:"cleaned_text"`
	Subjectivity float64 `json:"subjectivity"`
	Polarity     float64 `json:"polarity"`
}

// ClassifiedRecord is one row of the output table.
type ClassifiedRecord struct {
	ID           string  `json:"id"`
	CleanedText  string  `json:"cleaned_text"`
	Subjectivity float64 `json:"subjectivity"`
	Polarity     float64 `json:"polarity"`
	Label        Label   `json:"label"`
}

// SkippedDocument records a document dropped from a run and why.
type SkippedDocument struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

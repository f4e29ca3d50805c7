package models

import (
	"errors"
	"fmt"
)

type FetchErrorKind string

const (
	FetchUnauthorized  FetchErrorKind = "unauthorized"
	FetchRateLimited   FetchErrorKind = "rate_limited"
	FetchUnknownHandle FetchErrorKind = "unknown_handle"
	FetchNetwork       FetchErrorKind = "network"
)

// FetchError is returned by a document source when a fetch cannot be served.
// It is fatal to the analysis run.
type FetchError struct {
	Kind   FetchErrorKind
	Handle string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %q: %s: %v", e.Handle, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %q: %s", e.Handle, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same fetch may succeed later.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchRateLimited || e.Kind == FetchNetwork
}

func NewFetchError(kind FetchErrorKind, handle string, err error) *FetchError {
	return &FetchError{Kind: kind, Handle: handle, Err: err}
}

// IsFetchKind reports whether err carries a FetchError of the given kind.
func IsFetchKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

var (
	ErrEmptyText       = errors.New("document text is empty")
	ErrInvalidEncoding = errors.New("document text is not valid UTF-8")
	ErrDuplicateID     = errors.New("document id already seen in this fetch")
	ErrScorerFailure   = errors.New("scorer failed")
	ErrInvalidLimit    = errors.New("limit must be a positive integer")
)

// MalformedDocumentError marks a single document that was skipped.
type MalformedDocumentError struct {
	ID    string
	Index int
	Err   error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %q at index %d: %v", e.ID, e.Index, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

func (e *MalformedDocumentError) Skipped() SkippedDocument {
	return SkippedDocument{ID: e.ID, Index: e.Index, Reason: e.Err.Error()}
}

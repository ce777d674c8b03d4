package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the query-time miss. It is not a run failure.
var ErrNotFound = errors.New("analysis not found")

// IngestionKind classifies the fatal-to-the-run ingestion failures.
type IngestionKind string

const (
	IngestionUnsupportedFormat IngestionKind = "unsupported_format"
	IngestionSizeLimit         IngestionKind = "size_limit_exceeded"
	IngestionDecode            IngestionKind = "decode_failed"
	IngestionFetchNotFound     IngestionKind = "fetch_not_found"
	IngestionFetchDenied       IngestionKind = "fetch_access_denied"
	IngestionFetch             IngestionKind = "fetch_failed"
)

// IngestionError is the one fatal-to-the-run error class besides persistence:
// no feature stage can operate without a decoded asset, so the run fails as a
// whole and no partial record is created.
type IngestionError struct {
	Kind IngestionKind
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion %s: %v", e.Kind, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func NewIngestionError(kind IngestionKind, err error) *IngestionError {
	return &IngestionError{Kind: kind, Err: err}
}

// IsIngestionError reports whether err is an ingestion failure, returning its
// kind when it is.
func IsIngestionError(err error) (IngestionKind, bool) {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// PersistenceError surfaces a storage-layer fault on the single record write.
// The computed record is discarded; there is no retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrStageTimeout marks a stage result that failed because its per-stage
// deadline elapsed. It follows the same non-fatal path as any stage failure.
var ErrStageTimeout = errors.New("stage timed out")

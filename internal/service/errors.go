package service

import (
	"fmt"
	"net/http"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e *HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e *HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// ErrorKind classifies ingestion failures.
type ErrorKind string

const (
	// KindPersistenceFailure means the store could not be read or written.
	// The caller may retry the same request, it stays idempotent.
	KindPersistenceFailure ErrorKind = "persistence_failure"
)

// IngestError is returned by IngestService.Ingest.
type IngestError struct {
	Kind ErrorKind
	// Op is the store operation that failed.
	Op  string
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func persistenceFailure(op string, err error) error {
	return httpError(http.StatusInternalServerError, &IngestError{
		Kind: KindPersistenceFailure,
		Op:   op,
		Err:  err,
	})
}

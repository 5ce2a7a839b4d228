// Package outcome carries the typed result vocabulary shared by handlers and
// the executor: a fatal marker that short-circuits retries, and row-level
// partial errors for batch jobs. The retry-vs-permanent decision is explicit
// data here, never error string matching.
package outcome

import "errors"

type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks err as unrecoverable: the executor goes straight to the
// permanent-failure path regardless of remaining attempts.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err (or anything it wraps) was marked fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

// RowError records one failed row of a batch. Row numbers are 1-based, as
// presented to the humans reading the result.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary is the ephemeral result of a bulk import, delivered through
// the completion notification payload. It is not persisted as an entity.
type ImportSummary struct {
	TotalProcessed int        `json:"totalProcessed"`
	Successful     int        `json:"successful"`
	Failed         int        `json:"failed"`
	Errors         []RowError `json:"errors"`
}

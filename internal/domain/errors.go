package domain

import "fmt"

// NetworkError marks a failed remote call (connect, timeout, non-success
// status). Callers branch on it: a freshness check fails open when a usable
// local copy exists, a required download does not.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.URL)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError marks a malformed record in a streaming import. Index is the
// zero-based position of the record that failed; the whole pass aborts.
type ParseError struct {
	Source string
	Index  int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s record %d: %v", e.Source, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError marks a failed schema, index, or constraint operation.
type SchemaError struct {
	Stmt string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema statement failed (%s): %v", e.Stmt, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// VersionCheckError marks remote metadata that is missing the fields the
// freshness protocol depends on.
type VersionCheckError struct {
	Reason string
}

func (e *VersionCheckError) Error() string {
	return "version check: " + e.Reason
}

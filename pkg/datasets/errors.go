// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import "fmt"

// TransportError reports a failure establishing a connection, TLS
// handshake, sending a request, or reading a response body.
type TransportError struct {
	PathId PathId
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("datasets: transport error for %s (%s): %v", e.PathId, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IOError reports a failure creating, opening, writing, renaming,
// statting, or removing a local file.
type IOError struct {
	Op     string // "create", "open", "write", "rename", "stat", "remove"
	Path   string
	PathId PathId
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("datasets: %s failed for %s (%s): %v", e.Op, e.PathId, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// HashMismatchError reports that a downloaded or decoded artifact's
// digest did not match the declared hash.
type HashMismatchError struct {
	PathId   PathId
	Expected Hash
	Got      Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("datasets: hash mismatch for %s: expected %s, got %s", e.PathId, e.Expected, e.Got)
}

// SizeMismatchError reports that a downloaded or decoded artifact's
// size did not match the declared size.
type SizeMismatchError struct {
	PathId   PathId
	Expected uint64
	Got      uint64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("datasets: size mismatch for %s: expected %d, got %d", e.PathId, e.Expected, e.Got)
}

// ParseError reports a TOML/JSON parse failure, a schema validation
// failure (Name/Hash/Doi regex rejection), or a Brotli decode failure.
type ParseError struct {
	PathId PathId
	Source string // "toml", "json", "schema", "brotli"
	Err    error
}

func (e *ParseError) Error() string {
	if e.PathId != "" {
		return fmt.Sprintf("datasets: %s parse error for %s: %v", e.Source, e.PathId, e.Err)
	}
	return fmt.Sprintf("datasets: %s parse error: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResourceError reports a semaphore that closed (only happens when the
// action is cancelled) or a message channel send that failed.
type ResourceError struct {
	Kind string // "semaphore", "channel"
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("datasets: resource error (%s): %v", e.Kind, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ControlError reports cancellation or an aborted task join, distinct
// from the error kinds above so a caller can suppress follow-on
// "broken pipe" style cascades once one is observed.
type ControlError struct {
	Kind   string // "interrupted", "join"
	PathId PathId
	Err    error
}

func (e *ControlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("datasets: %s for %s: %v", e.Kind, e.PathId, e.Err)
	}
	return fmt.Sprintf("datasets: %s for %s", e.Kind, e.PathId)
}

func (e *ControlError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is a ControlError produced by
// cancellation, so callers can distinguish it from a genuine failure.
func IsCancellation(err error) bool {
	ce, ok := err.(*ControlError)
	return ok && ce.Kind == "interrupted"
}

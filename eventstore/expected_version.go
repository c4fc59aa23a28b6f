package eventstore

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict is the sentinel for optimistic concurrency
// violations. Use errors.Is to detect a conflict; use errors.As with
// *ConcurrencyError to recover the stream's actual version.
var ErrConcurrencyConflict = errors.New("stream not at expected version")

type expectedVersionKind int

const (
	anyVersion expectedVersionKind = iota
	noStream
	streamExists
	exactVersion
)

// ExpectedVersion is a write-time precondition on a stream's current
// version, used for optimistic concurrency control. A writer states the
// version it believes the stream is at; the store verifies before
// committing.
//
// It should only be constructed with the supplied factory methods:
//   - AnyVersion
//   - NoStream
//   - StreamExists
//   - ExactVersion
type ExpectedVersion struct {
	kind    expectedVersionKind
	version EventVersion
}

// AnyVersion returns an ExpectedVersion that skips the version check.
func AnyVersion() ExpectedVersion {
	return ExpectedVersion{kind: anyVersion}
}

// NoStream returns an ExpectedVersion requiring that the stream has no
// events yet (current version is NoEventsVersion).
func NoStream() ExpectedVersion {
	return ExpectedVersion{kind: noStream}
}

// StreamExists returns an ExpectedVersion requiring that the stream has at
// least one event (current version >= 0).
func StreamExists() ExpectedVersion {
	return ExpectedVersion{kind: streamExists}
}

// ExactVersion returns an ExpectedVersion requiring that the stream's
// current version equals v exactly.
func ExactVersion(v EventVersion) ExpectedVersion {
	return ExpectedVersion{kind: exactVersion, version: v}
}

// HasCheck reports whether this precondition requires the current version
// to be fetched at all. AnyVersion appends unconditionally.
func (ev ExpectedVersion) HasCheck() bool {
	return ev.kind != anyVersion
}

// Matches evaluates the precondition against the stream's current version.
func (ev ExpectedVersion) Matches(current EventVersion) bool {
	switch ev.kind {
	case anyVersion:
		return true
	case noStream:
		return current == NoEventsVersion
	case streamExists:
		return current > NoEventsVersion
	case exactVersion:
		return current == ev.version
	default:
		return false
	}
}

// Version returns the exact version for an ExactVersion precondition.
// It returns NoEventsVersion for all other kinds.
func (ev ExpectedVersion) Version() EventVersion {
	if ev.kind == exactVersion {
		return ev.version
	}

	return NoEventsVersion
}

// String provides a representation of ExpectedVersion for logging and error messages.
func (ev ExpectedVersion) String() string {
	switch ev.kind {
	case anyVersion:
		return "AnyVersion"
	case noStream:
		return "NoStream"
	case streamExists:
		return "StreamExists"
	case exactVersion:
		return fmt.Sprintf("ExactVersion(%d)", ev.version)
	default:
		return "unknown"
	}
}

// ConcurrencyError reports that a stream was not at the version a writer
// expected. It carries the stream's actual version at check time so the
// caller can decide to retry, merge, or abort. The core never retries.
type ConcurrencyError struct {
	Expected      ExpectedVersion
	ActualVersion EventVersion
}

// NewConcurrencyError builds a ConcurrencyError from the failed
// precondition and the version that was actually found.
func NewConcurrencyError(expected ExpectedVersion, actual EventVersion) *ConcurrencyError {
	return &ConcurrencyError{Expected: expected, ActualVersion: actual}
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s: expected %s, actual version %d",
		ErrConcurrencyConflict.Error(), e.Expected, e.ActualVersion)
}

// Is makes errors.Is(err, ErrConcurrencyConflict) match a ConcurrencyError.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

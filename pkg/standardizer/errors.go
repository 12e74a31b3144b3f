package standardizer

import (
	"errors"
	"fmt"
)

// Configuration errors, surfaced at construction time.
var (
	// ErrEmptyStandards is returned when the standards list is empty
	ErrEmptyStandards = errors.New("standards list cannot be empty")

	// ErrInvalidNGramRange is returned for a malformed n-gram range
	ErrInvalidNGramRange = errors.New("invalid n-gram range")

	// ErrInvalidAnalyzer is returned for an unrecognized analyzer mode
	ErrInvalidAnalyzer = errors.New("invalid analyzer")
)

// Input errors, surfaced when a batch or lookup key is malformed.
var (
	// ErrEmptyInput is returned when the raw input batch is empty
	ErrEmptyInput = errors.New("raw input batch cannot be empty")

	// ErrEmptyString is returned when the raw input batch contains a blank string
	ErrEmptyString = errors.New("raw input batch contains an empty string")

	// ErrInvalidKey is returned for a lookup key that is neither a value nor an index
	ErrInvalidKey = errors.New("invalid lookup key")
)

// State errors, surfaced when a read happens before the computation
// that produces it.
var (
	// ErrNoSession is returned when no standardization has run yet
	ErrNoSession = errors.New("no standardization session exists")

	// ErrStaleSession is returned when the session predates a standards change
	ErrStaleSession = errors.New("session is stale: standards changed since it was computed")

	// ErrLengthMismatch is returned when raw inputs and standardized outputs diverge
	ErrLengthMismatch = errors.New("raw and standardized lists differ in length")
)

// Lookup misses.
var (
	// ErrUnknownRaw is returned when a raw value is absent from the session
	ErrUnknownRaw = errors.New("raw value not found in session")

	// ErrUnknownStandard is returned when no raw value resolved to the standard
	ErrUnknownStandard = errors.New("standard not found in session")

	// ErrIndexOutOfRange is returned for a positional key outside the session
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Error wraps errors with operation context
type Error struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("standardizer: %v", e.Err)
	}
	return fmt.Sprintf("standardizer: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

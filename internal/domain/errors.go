// Package domain defines the logical cube model and the error taxonomy shared
// by the query compiler, the browser, and the CLI.
package domain

import "fmt"

// ModelError indicates an inconsistent or incomplete physical model: an
// unknown or twice-joined table, an unreachable join, or a cut that straddles
// relationship buckets.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string { return e.Message }

// MappingError indicates that a logical attribute has no usable physical
// column or that a mapping expression is malformed.
type MappingError struct {
	Message string
}

func (e *MappingError) Error() string { return e.Message }

// ArgumentError indicates invalid caller input, such as a cut path deeper than
// its hierarchy or an unsupported aggregate combination.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string { return e.Message }

// NotFoundError indicates that a named model object does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// BackendError wraps a failure reported by the database while executing a
// statement. It is propagated unchanged in meaning and never retried.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	if e.Op == "" {
		return "backend: " + e.Err.Error()
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrModel creates a ModelError with a formatted message.
func ErrModel(format string, args ...interface{}) *ModelError {
	return &ModelError{Message: fmt.Sprintf(format, args...)}
}

// ErrMapping creates a MappingError with a formatted message.
func ErrMapping(format string, args ...interface{}) *MappingError {
	return &MappingError{Message: fmt.Sprintf(format, args...)}
}

// ErrArgument creates an ArgumentError with a formatted message.
func ErrArgument(format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// WrapBackend wraps err as a BackendError for the named operation.
// A nil err yields nil.
func WrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

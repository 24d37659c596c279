package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid, such as
	// an unknown category or empty content.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed indicates the agent has been closed.
	ErrClosed = errors.New("agent closed")
)

// StoreError wraps errors with operation context.
//
// Example:
//
//	err := &StoreError{
//	    Op:  "Remember",
//	    Err: ErrInvalidInput,
//	}
//	// Error() returns: "devmem: Remember: invalid input"
type StoreError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "devmem: <Op>: <Err>"
func (e *StoreError) Error() string {
	return fmt.Sprintf("devmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with StoreError.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewStoreError("Remember", err)
//	}
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{
		Op:  op,
		Err: err,
	}
}

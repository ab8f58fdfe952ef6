// Package errors provides comprehensive error handling utilities for scnnexp.
//
// This file converts panics raised inside experiment collaborators (data
// providers, preprocessing, model backends) into errors so that they reach
// the caller through the normal error path and terminate the run cleanly.

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies the collaborator call that panicked
	Operation string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover is used with defer to turn a panic into an error assigned to *err.
//
// Usage:
//
//	func (r *Runner) fit(...) (err error) {
//	    defer Recover(&err, "model.Fit")
//	    ...
//	}
//
// If the function already set an error, the panic is reported alongside it.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)

		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)",
				operation, r, *err)
		} else {
			*err = panicErr
		}
	}
}

// SafeCall runs a collaborator and converts any panic into a PanicError.
//
// Example:
//
//	test, err := errors.SafeCall("provider.TestingData", func() (dataprep.Raw, error) {
//	    return provider.TestingData(sigma, order, sigmaNoise, std)
//	})
func SafeCall[T any](operation string, fn func() (T, error)) (result T, err error) {
	defer Recover(&err, operation)
	return fn()
}

package dispatch

import (
	"errors"
	"fmt"

	"github.com/dshills/axscript/internal/registry"
)

// Sentinel errors for handler invocation.
var (
	// ErrHandlerInvocation wraps every error raised while invoking a handler.
	ErrHandlerInvocation = errors.New("handler invocation failed")

	// ErrHandlerTimeout is returned when a handler overruns its soft timeout.
	ErrHandlerTimeout = errors.New("handler timeout exceeded")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError describes a failed handler invocation.
type HandlerError struct {
	// Binding is the binding whose handler failed.
	Binding registry.Binding

	// EventID is the ID of the event being dispatched.
	EventID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s (event %s): %v",
		e.Binding.Type, e.Binding.Key, e.EventID, e.Err)
}

// Unwrap exposes both ErrHandlerInvocation and the underlying error.
func (e *HandlerError) Unwrap() []error {
	return []error{ErrHandlerInvocation, e.Err}
}

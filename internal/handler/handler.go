// Package handler defines the callable a script binds to a class and event
// type, and the tri-state outcome it reports back to dispatch.
package handler

import (
	"context"

	"github.com/dshills/axscript/internal/event"
)

// Outcome is what a handler reports for one event.
type Outcome uint8

const (
	// NoReturn means the handler returned nothing. It is treated as NotHandled.
	NoReturn Outcome = iota
	// NotHandled lets normal processing continue.
	NotHandled
	// Handled consumes the event and suppresses further processing.
	Handled
)

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case NoReturn:
		return "no-return"
	case NotHandled:
		return "not-handled"
	case Handled:
		return "handled"
	default:
		return "unknown"
	}
}

// Consumed reports whether the outcome stops the handler chain.
func (o Outcome) Consumed() bool {
	return o == Handled
}

// FromBool maps a boolean script return value to an Outcome.
func FromBool(handled bool) Outcome {
	if handled {
		return Handled
	}
	return NotHandled
}

// Handler reacts to one event type for one class binding.
//
// Implementations may keep private state between calls (for example the
// last text seen on a text field); dispatch for a given binding is
// sequential so that state needs no locking unless shared elsewhere.
type Handler interface {
	Handle(ctx context.Context, ev *event.UIEvent) (Outcome, error)
}

// Func is a function adapter for Handler.
type Func func(ctx context.Context, ev *event.UIEvent) (Outcome, error)

// Handle implements Handler.
func (f Func) Handle(ctx context.Context, ev *event.UIEvent) (Outcome, error) {
	return f(ctx, ev)
}

// Bool adapts a predicate that returns true when it handled the event.
type Bool func(ev *event.UIEvent) bool

// Handle implements Handler.
func (f Bool) Handle(_ context.Context, ev *event.UIEvent) (Outcome, error) {
	return FromBool(f(ev)), nil
}

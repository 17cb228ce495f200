package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dshills/axscript/internal/event"
	"github.com/dshills/axscript/internal/handler"
	"github.com/dshills/axscript/internal/registry"
)

// Invocation is the outcome of running one bound handler.
type Invocation struct {
	// Binding is the binding that was invoked.
	Binding registry.Binding

	// Outcome is what the handler reported. It is NotHandled whenever Err is set.
	Outcome handler.Outcome

	// Err is the handler error, panic or timeout, if any.
	Err error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// TimedOut is true if the handler overran the soft timeout.
	TimedOut bool

	// Duration is how long the invocation took.
	Duration time.Duration
}

// Executor runs handlers with panic recovery and an optional soft timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor. A timeout of zero runs handlers inline
// with no deadline.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Timeout returns the soft timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute invokes the binding's handler for ev.
//
// With a timeout the handler runs on its own goroutine under a context that
// is cancelled at the deadline. Execute returns at the deadline even if the
// handler ignores cancellation; the abandoned goroutine's result is dropped.
func (e *Executor) Execute(ctx context.Context, ev *event.UIEvent, b registry.Binding) Invocation {
	if e.timeout <= 0 {
		return e.run(ctx, ev, b)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Invocation, 1)
	go func() {
		done <- e.run(ctx, ev, b)
	}()

	select {
	case inv := <-done:
		return inv
	case <-ctx.Done():
		err := ctx.Err()
		inv := Invocation{
			Binding:  b,
			Outcome:  handler.NotHandled,
			Duration: time.Since(start),
		}
		if err == context.DeadlineExceeded {
			inv.TimedOut = true
			inv.Err = fmt.Errorf("%w after %s", ErrHandlerTimeout, e.timeout)
		} else {
			inv.Err = err
		}
		return inv
	}
}

// run calls the handler on the current goroutine and recovers from panics.
func (e *Executor) run(ctx context.Context, ev *event.UIEvent, b registry.Binding) (inv Invocation) {
	inv.Binding = b
	start := time.Now()

	defer func() {
		inv.Duration = time.Since(start)

		if r := recover(); r != nil {
			inv.Outcome = handler.NotHandled
			inv.Panicked = true
			inv.PanicStack = debug.Stack()
			inv.Err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	outcome, err := b.Handler.Handle(ctx, ev)
	if err != nil {
		inv.Outcome = handler.NotHandled
		inv.Err = err
		return inv
	}
	inv.Outcome = outcome
	return inv
}

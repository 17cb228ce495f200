// Package dispatch routes UI events to the handlers bound to their class and
// event type.
//
// Handlers run strictly in registration order. The first handler that
// reports Handled stops the chain. A handler that returns an error, panics
// or overruns its soft timeout is reported to the error reporter and treated
// as not handled; the chain and the event stream continue.
//
// # Usage
//
//	engine := dispatch.NewEngine(reg,
//	    dispatch.WithSpeechObserver(coord),
//	    dispatch.WithReporter(reporter),
//	    dispatch.WithHandlerTimeout(250*time.Millisecond),
//	)
//	result := engine.Dispatch(ctx, ev)
//	if !result.Handled {
//	    // host performs its default processing
//	}
//
// # Package-agnostic bindings
//
// Bindings registered by a script that never declared a package are stored
// under an empty package and match the class in every package. They run
// after the bindings for the event's own package.
package dispatch

package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/axscript/internal/classkey"
	"github.com/dshills/axscript/internal/event"
	"github.com/dshills/axscript/internal/registry"
	"github.com/dshills/axscript/internal/report"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 250 * time.Millisecond

// Lookup is the registry view the engine reads from.
type Lookup interface {
	Lookup(key classkey.Key, typ event.Type) []registry.Binding
}

// SpeechObserver is told the aggregate outcome of every dispatch.
type SpeechObserver interface {
	ObserveDispatch(typ event.Type, handled bool)
}

// Result summarizes one dispatch.
type Result struct {
	// Handled is true if a handler consumed the event.
	Handled bool

	// Invoked is the number of handlers that ran.
	Invoked int

	// Errors holds the handler errors reported during this dispatch.
	Errors []error
}

// Engine dispatches UI events to registered handlers.
type Engine struct {
	lookup   Lookup
	executor *Executor
	speech   SpeechObserver
	reporter report.Reporter
	logger   *slog.Logger

	invocations metric.Int64Counter
	failures    metric.Int64Counter

	dispatched  atomic.Uint64
	handled     atomic.Uint64
	invoked     atomic.Uint64
	errored     atomic.Uint64
	timedOut    atomic.Uint64
	panicked    atomic.Uint64
	totalTimeNs atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithHandlerTimeout sets the soft timeout per handler. Zero disables it.
func WithHandlerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.executor = NewExecutor(d)
	}
}

// WithSpeechObserver sets the observer told about dispatch outcomes.
func WithSpeechObserver(o SpeechObserver) Option {
	return func(e *Engine) {
		e.speech = o
	}
}

// WithReporter sets the sink for handler errors.
func WithReporter(r report.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine reading bindings from lookup.
func NewEngine(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{
		lookup:   lookup,
		executor: NewExecutor(DefaultHandlerTimeout),
		reporter: report.Discard,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Instrument creation only fails for invalid names.
	e.invocations, _ = meter.Int64Counter("axscript.dispatch.invocations",
		metric.WithDescription("Handler invocations by outcome"))
	e.failures, _ = meter.Int64Counter("axscript.dispatch.failures",
		metric.WithDescription("Handler errors, panics and timeouts"))

	return e
}

// Dispatch routes ev to its handlers and reports whether one consumed it.
// It never fails: handler errors are reported and collected in the result.
func (e *Engine) Dispatch(ctx context.Context, ev *event.UIEvent) Result {
	e.dispatched.Add(1)

	key := classkey.Key{Package: ev.Package, Class: ev.Class}
	exact := e.lookup.Lookup(key, ev.Type)
	var global []registry.Binding
	if key.Package != "" {
		global = e.lookup.Lookup(key.AnyPackage(), ev.Type)
	}

	if len(exact) == 0 && len(global) == 0 {
		e.observe(ev.Type, false)
		return Result{}
	}

	ctx, span := tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type.String()),
			attribute.String("event.package", ev.Package),
			attribute.String("event.class", ev.Class),
		))
	defer span.End()

	start := time.Now()
	var result Result
	if !e.runChain(ctx, ev, exact, &result) {
		e.runChain(ctx, ev, global, &result)
	}
	e.totalTimeNs.Add(time.Since(start).Nanoseconds())

	if result.Handled {
		e.handled.Add(1)
	}
	span.SetAttributes(
		attribute.Bool("dispatch.handled", result.Handled),
		attribute.Int("dispatch.invoked", result.Invoked),
		attribute.Int("dispatch.errors", len(result.Errors)),
	)
	e.logger.Debug("dispatched event",
		slog.String("event", ev.ID),
		slog.String("type", ev.Type.String()),
		slog.String("class", key.String()),
		slog.Bool("handled", result.Handled),
		slog.Int("invoked", result.Invoked),
	)

	e.observe(ev.Type, result.Handled)
	return result
}

// runChain invokes bindings in order until one consumes the event.
// It returns true if the event was handled.
func (e *Engine) runChain(ctx context.Context, ev *event.UIEvent, bindings []registry.Binding, result *Result) bool {
	for _, b := range bindings {
		if ctx.Err() != nil {
			return false
		}

		inv := e.executor.Execute(ctx, ev, b)
		result.Invoked++
		e.invoked.Add(1)
		e.record(ctx, inv)

		if inv.Err != nil {
			herr := &HandlerError{Binding: b, EventID: ev.ID, Err: inv.Err}
			result.Errors = append(result.Errors, herr)
			e.reporter.Report(b.ScriptID, herr)
			continue
		}
		if inv.Outcome.Consumed() {
			result.Handled = true
			return true
		}
	}
	return false
}

func (e *Engine) record(ctx context.Context, inv Invocation) {
	attrs := metric.WithAttributes(
		attribute.String("event.type", inv.Binding.Type.String()),
		attribute.String("outcome", inv.Outcome.String()),
	)
	e.invocations.Add(ctx, 1, attrs)

	if inv.Err == nil {
		return
	}
	e.errored.Add(1)
	kind := "error"
	switch {
	case inv.TimedOut:
		e.timedOut.Add(1)
		kind = "timeout"
	case inv.Panicked:
		e.panicked.Add(1)
		kind = "panic"
	}
	e.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (e *Engine) observe(typ event.Type, handled bool) {
	if e.speech != nil {
		e.speech.ObserveDispatch(typ, handled)
	}
}

// Stats contains engine counters.
type Stats struct {
	// Dispatched is the total number of dispatched events.
	Dispatched uint64

	// Handled is the number of events a handler consumed.
	Handled uint64

	// Invocations is the number of handler calls.
	Invocations uint64

	// Errors is the number of failed handler calls, including timeouts and panics.
	Errors uint64

	// Timeouts is the number of handler calls that overran the soft timeout.
	Timeouts uint64

	// Panics is the number of handler calls that panicked.
	Panics uint64

	// TotalDuration is the cumulative time spent in handler chains.
	TotalDuration time.Duration
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Dispatched:    e.dispatched.Load(),
		Handled:       e.handled.Load(),
		Invocations:   e.invoked.Load(),
		Errors:        e.errored.Load(),
		Timeouts:      e.timedOut.Load(),
		Panics:        e.panicked.Load(),
		TotalDuration: time.Duration(e.totalTimeNs.Load()),
	}
}

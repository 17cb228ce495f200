// Package report delivers script errors to an observer: handler failures
// and timeouts during dispatch, and warnings raised while a script registers
// its bindings.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/time/rate"

	"github.com/dshills/axscript/internal/registry"
)

const scopeName = "github.com/dshills/axscript/internal/report"

// Reporter receives errors attributed to a script.
type Reporter interface {
	Report(scriptID string, err error)
}

// Func is a function adapter for Reporter.
type Func func(scriptID string, err error)

// Report implements Reporter.
func (f Func) Report(scriptID string, err error) {
	f(scriptID, err)
}

// Discard drops every report.
var Discard Reporter = Func(func(string, error) {})

// LogReporter writes reports as structured log records. Registration
// warnings are logged at warn level, everything else at error level.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter writing to logger. A nil logger uses
// the OpenTelemetry log bridge.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = otelslog.NewLogger(scopeName)
	}
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(scriptID string, err error) {
	if err == nil {
		return
	}
	level := slog.LevelError
	if isWarning(err) {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "script error",
		slog.String("script", scriptID),
		slog.Any("error", err),
	)
}

func isWarning(err error) bool {
	var w warning
	return errors.As(err, &w) ||
		errors.Is(err, registry.ErrUnknownEvent) ||
		errors.Is(err, registry.ErrNilHandler)
}

type warning struct {
	error
}

func (w warning) Unwrap() error {
	return w.error
}

// Warning marks err as informational so LogReporter logs it at warn level.
func Warning(err error) error {
	if err == nil {
		return nil
	}
	return warning{err}
}

// ErrReportsSuppressed marks the summary Limited sends once a script's
// budget refills after reports were dropped.
var ErrReportsSuppressed = errors.New("reports suppressed")

// Limited rate-limits reports per script so a misbehaving handler on a
// keystroke stream does not flood the downstream reporter. Dropped reports
// are not lost silently: the next report that gets through is preceded by a
// warning counting what was dropped for that script.
type Limited struct {
	next  Reporter
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	dropped atomic.Uint64
}

type bucket struct {
	lim     *rate.Limiter
	pending uint64
}

// NewLimited wraps next, allowing limit reports per second per script with
// the given burst.
func NewLimited(next Reporter, limit rate.Limit, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limit:   limit,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Report implements Reporter.
func (l *Limited) Report(scriptID string, err error) {
	l.mu.Lock()
	b, ok := l.buckets[scriptID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[scriptID] = b
	}
	if !b.lim.AllowN(l.now(), 1) {
		b.pending++
		l.mu.Unlock()
		l.dropped.Add(1)
		return
	}
	suppressed := b.pending
	b.pending = 0
	l.mu.Unlock()

	if suppressed > 0 {
		l.next.Report(scriptID, Warning(fmt.Errorf("%w: %d dropped", ErrReportsSuppressed, suppressed)))
	}
	l.next.Report(scriptID, err)
}

// Dropped returns the number of reports suppressed by the limiter.
func (l *Limited) Dropped() uint64 {
	return l.dropped.Load()
}

// Collector keeps reports in memory.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is one collected report.
type Entry struct {
	ScriptID string
	Err      error
}

// Report implements Reporter.
func (c *Collector) Report(scriptID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{ScriptID: scriptID, Err: err})
}

// Entries returns a copy of the collected reports.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of collected reports.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

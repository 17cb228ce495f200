package speech

import (
	"sync/atomic"

	"github.com/dshills/axscript/internal/event"
)

// State is the interrupt state of the coordinator.
type State uint8

const (
	// InterruptAllowed lets the next utterance interrupt current speech.
	InterruptAllowed State = iota
	// InterruptSuppressed makes the next utterance queue behind current speech.
	InterruptSuppressed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case InterruptAllowed:
		return "interrupt-allowed"
	case InterruptSuppressed:
		return "interrupt-suppressed"
	default:
		return "unknown"
	}
}

// DefaultSpeechEvents are the event types whose dispatch outcome influences
// the next utterance.
var DefaultSpeechEvents = []event.Type{
	event.WindowStateChanged,
	event.ViewFocused,
	event.ViewTextChanged,
}

// Coordinator tracks one-shot interrupt suppression.
// All methods are safe for concurrent use.
type Coordinator struct {
	suppressed atomic.Bool
	influences [event.NotificationStateChanged + 1]bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSpeechEvents replaces the set of event types whose handled outcome
// suppresses the next interrupt.
func WithSpeechEvents(types ...event.Type) CoordinatorOption {
	return func(c *Coordinator) {
		c.influences = [event.NotificationStateChanged + 1]bool{}
		for _, t := range types {
			if t.Valid() {
				c.influences[t] = true
			}
		}
	}
}

// NewCoordinator creates a coordinator in the InterruptAllowed state.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{}
	for _, t := range DefaultSpeechEvents {
		c.influences[t] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	if c.suppressed.Load() {
		return InterruptSuppressed
	}
	return InterruptAllowed
}

// QuerySuppression reports whether the next utterance is suppressed from
// interrupting. It does not change state.
func (c *Coordinator) QuerySuppression() bool {
	return c.suppressed.Load()
}

// SuppressNextInterrupt makes the next utterance not interrupt.
func (c *Coordinator) SuppressNextInterrupt() {
	c.suppressed.Store(true)
}

// OnSpeechIssued computes the effective interrupt for an utterance and
// resets to InterruptAllowed. If explicit is nil the effective value is the
// negation of the suppression flag. The read and the reset are one atomic
// step, so a concurrent SuppressNextInterrupt is either consumed here or
// applies to the following utterance.
func (c *Coordinator) OnSpeechIssued(explicit *bool) bool {
	wasSuppressed := c.suppressed.Swap(false)
	if explicit != nil {
		return *explicit
	}
	return !wasSuppressed
}

// Influences reports whether dispatch outcomes for typ affect speech.
func (c *Coordinator) Influences(typ event.Type) bool {
	return typ.Valid() && c.influences[typ]
}

// ObserveDispatch records the aggregate outcome of dispatching an event.
// A handled event of a speech-influencing type means the host skips its own
// utterance for it, so whatever the script said is not cut off by the next
// utterance.
func (c *Coordinator) ObserveDispatch(typ event.Type, handled bool) {
	if handled && c.Influences(typ) {
		c.SuppressNextInterrupt()
	}
}

package registry

import (
	"errors"

	"github.com/dshills/axscript/internal/classkey"
)

// Registration warnings. None of them abort a registration; the offending
// entry is skipped and the rest of the event map is registered.
var (
	// ErrUnknownEvent is returned for event map entries whose name is not a
	// known event type.
	ErrUnknownEvent = errors.New("unknown event in event map")

	// ErrNilHandler is returned for event map entries with no handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// UnknownEventError is the warning produced for an unrecognized event name.
type UnknownEventError struct {
	// Key is the class the event map was registered for.
	Key classkey.Key

	// Name is the event name as supplied by the script.
	Name string
}

// Error implements the error interface.
func (e *UnknownEventError) Error() string {
	return "unknown event " + `"` + e.Name + `"` + " for " + e.Key.String()
}

// Unwrap returns ErrUnknownEvent.
func (e *UnknownEventError) Unwrap() error {
	return ErrUnknownEvent
}

package event

import "errors"

// ErrUnknownType is returned when an event type name is not recognized.
var ErrUnknownType = errors.New("unknown event type")

// UnknownTypeError carries the name that failed to parse.
type UnknownTypeError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return "unknown event type " + `"` + e.Name + `"`
}

// Unwrap returns ErrUnknownType so callers can use errors.Is.
func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownType
}

package classkey

import "errors"

// ErrInvalidReference is returned when a class reference cannot be resolved,
// either because it is empty or because it is relative and no package has
// been declared.
var ErrInvalidReference = errors.New("invalid class reference")

// ReferenceError describes a failed resolution.
type ReferenceError struct {
	// Ref is the reference as written by the script.
	Ref string

	// Reason explains why resolution failed.
	Reason string
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	return "invalid class reference " + `"` + e.Ref + `": ` + e.Reason
}

// Unwrap returns ErrInvalidReference.
func (e *ReferenceError) Unwrap() error {
	return ErrInvalidReference
}

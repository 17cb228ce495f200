package hostlink

import (
	"errors"
	"fmt"
)

// Host link errors.
var (
	// ErrMalformedFrame is returned for frames that cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnexpectedKind is returned for frames of a kind the receiver does
	// not accept.
	ErrUnexpectedKind = errors.New("unexpected frame kind")

	// ErrFrameTooLarge is returned for inbound frames over MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrNotConnected is returned when speaking with no host connected.
	ErrNotConnected = errors.New("no host connected")
)

// FrameError reports a bad inbound frame. Line is 0 for WebSocket frames.
type FrameError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("frame on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("frame: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}

package hostlink

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/axscript/internal/dispatch"
	"github.com/dshills/axscript/internal/event"
)

// Kind identifies a frame.
type Kind string

// Frame kinds.
const (
	KindEvent  Kind = "event"
	KindResult Kind = "result"
	KindSpeak  Kind = "speak"
	KindNotify Kind = "notify"
	KindError  Kind = "error"
)

// Frame is one message between host and runtime. Which fields are set
// depends on Kind.
type Frame struct {
	Kind Kind `json:"kind"`

	// Event and result fields.
	ID      string `json:"id,omitempty"`
	Package string `json:"package,omitempty"`
	Class   string `json:"class,omitempty"`
	Type    string `json:"type,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Handled *bool  `json:"handled,omitempty"`

	// Speech fields.
	Text      string `json:"text,omitempty"`
	Interrupt *bool  `json:"interrupt,omitempty"`

	// Error carries the reason an inbound frame was rejected.
	Error string `json:"error,omitempty"`
}

// DecodeFrame parses one JSON frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Kind == "" {
		return Frame{}, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}
	return f, nil
}

// Event converts an event frame to a UIEvent. A frame without an ID gets a
// fresh one.
func (f Frame) Event() (*event.UIEvent, error) {
	if f.Kind != KindEvent {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedKind, f.Kind)
	}
	if f.Class == "" {
		return nil, fmt.Errorf("%w: missing class", ErrMalformedFrame)
	}
	typ, err := event.ParseType(f.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	ev := event.New(f.Package, f.Class, typ, f.Payload)
	if f.ID != "" {
		ev.ID = f.ID
	}
	return ev, nil
}

// EventFrame builds the frame the host sends for ev.
func EventFrame(ev *event.UIEvent) Frame {
	return Frame{
		Kind:    KindEvent,
		ID:      ev.ID,
		Package: ev.Package,
		Class:   ev.Class,
		Type:    ev.Type.String(),
		Payload: ev.Payload,
	}
}

// ResultFrame builds the reply to an event frame.
func ResultFrame(id string, r dispatch.Result) Frame {
	handled := r.Handled
	f := Frame{Kind: KindResult, ID: id, Handled: &handled}
	if len(r.Errors) > 0 {
		f.Error = r.Errors[0].Error()
	}
	return f
}

// SpeakFrame builds a speech frame.
func SpeakFrame(text string, interrupt bool) Frame {
	return Frame{Kind: KindSpeak, Text: text, Interrupt: &interrupt}
}

// NotifyFrame builds a notification speech frame.
func NotifyFrame(text string) Frame {
	return Frame{Kind: KindNotify, Text: text}
}

// ErrorFrame builds the reply to a rejected frame.
func ErrorFrame(id string, err error) Frame {
	return Frame{Kind: KindError, ID: id, Error: err.Error()}
}

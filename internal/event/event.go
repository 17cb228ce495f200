package event

import (
	"time"

	"github.com/google/uuid"
)

// UIEvent is a single event delivered by the host accessibility service.
// Package and Class are always fully qualified.
type UIEvent struct {
	// ID uniquely identifies this event instance.
	ID string

	// Package is the application package that produced the event.
	Package string

	// Class is the fully-qualified UI class of the event source.
	Class string

	// Type is the kind of event.
	Type Type

	// Payload is the host-specific event data. The core never inspects it.
	Payload any

	// Time is when the event was received.
	Time time.Time
}

// New creates an event with a fresh ID and the current time.
func New(pkg, class string, typ Type, payload any) *UIEvent {
	return &UIEvent{
		ID:      uuid.NewString(),
		Package: pkg,
		Class:   class,
		Type:    typ,
		Payload: payload,
		Time:    time.Now(),
	}
}

// Text returns the first entry of the payload's "text" field, which is how
// hosts deliver the current contents of a text view. It returns false if the
// payload carries no text.
func (e *UIEvent) Text() (string, bool) {
	m, ok := e.Payload.(map[string]any)
	if !ok {
		return "", false
	}
	switch v := m["text"].(type) {
	case string:
		return v, true
	case []string:
		if len(v) > 0 {
			return v[0], true
		}
	case []any:
		if len(v) > 0 {
			s, ok := v[0].(string)
			return s, ok
		}
	}
	return "", false
}

package event

import (
	"fmt"
	"strings"
)

// Type identifies the kind of UI event a handler reacts to.
// The set is closed; scripts cannot introduce new kinds.
type Type int

const (
	// ViewClicked is emitted when a view is clicked.
	ViewClicked Type = iota + 1

	// ViewFocused is emitted when a view gains input focus.
	ViewFocused

	// ViewSelected is emitted when an item in a list or spinner is selected.
	ViewSelected

	// ViewTextChanged is emitted when the text of an editable view changes.
	ViewTextChanged

	// WindowStateChanged is emitted when a window, dialog or popup opens.
	WindowStateChanged

	// NotificationStateChanged is emitted when a notification is posted.
	NotificationStateChanged
)

// handlerPrefix is the prefix script event maps use for handler names
// (e.g. "onViewFocused").
const handlerPrefix = "on"

var typeNames = [...]string{
	ViewClicked:              "ViewClicked",
	ViewFocused:              "ViewFocused",
	ViewSelected:             "ViewSelected",
	ViewTextChanged:          "ViewTextChanged",
	WindowStateChanged:       "WindowStateChanged",
	NotificationStateChanged: "NotificationStateChanged",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t := ViewClicked; t <= NotificationStateChanged; t++ {
		m[typeNames[t]] = t
	}
	return m
}()

// String returns the canonical name of the event type.
func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// HandlerName returns the name a script uses for this type in an event map.
func (t Type) HandlerName() string {
	return handlerPrefix + t.String()
}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	return t >= ViewClicked && t <= NotificationStateChanged
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses an event type name. Both the canonical form
// ("ViewFocused") and the handler form ("onViewFocused") are accepted.
func ParseType(name string) (Type, error) {
	if t, ok := typesByName[name]; ok {
		return t, nil
	}
	if rest, ok := strings.CutPrefix(name, handlerPrefix); ok {
		if t, ok := typesByName[rest]; ok {
			return t, nil
		}
	}
	return 0, &UnknownTypeError{Name: name}
}

// Types returns every event type in enumeration order.
func Types() []Type {
	types := make([]Type, 0, len(typeNames)-1)
	for t := ViewClicked; t <= NotificationStateChanged; t++ {
		types = append(types, t)
	}
	return types
}

// Package registry stores script handlers keyed by class and event type.
//
// Bindings accumulate: many independently loaded scripts may patch the same
// UI class, so a later registration is appended after earlier ones rather
// than replacing them. Registration is permanent for the process lifetime.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/axscript/internal/classkey"
	"github.com/dshills/axscript/internal/event"
	"github.com/dshills/axscript/internal/handler"
)

// EventMap binds handlers to event types for one class.
type EventMap map[event.Type]handler.Handler

// Binding is one registered handler.
type Binding struct {
	// ScriptID identifies the script that registered the handler.
	ScriptID string

	// Key is the class the handler is bound to.
	Key classkey.Key

	// Type is the event type the handler reacts to.
	Type event.Type

	// Handler is the callable.
	Handler handler.Handler

	// Seq is the global registration sequence number, starting at 1.
	Seq uint64
}

type bindingKey struct {
	key classkey.Key
	typ event.Type
}

// Registry maps (class key, event type) to an ordered list of bindings.
//
// Lists are copy-on-append: a registration publishes a new slice and never
// mutates one a reader may hold, so Lookup can hand out the stored slice
// without copying.
type Registry struct {
	mu       sync.RWMutex
	bindings map[bindingKey][]Binding
	classes  map[classkey.Key]struct{}
	seq      uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		bindings: make(map[bindingKey][]Binding),
		classes:  make(map[classkey.Key]struct{}),
	}
}

// Register appends each handler in m to the list for (key, type), in event
// type enumeration order. The returned warnings cover entries that were
// skipped; a nil result means everything was registered.
func (r *Registry) Register(scriptID string, key classkey.Key, m EventMap) []error {
	var warnings []error

	types := make([]event.Type, 0, len(m))
	for typ := range m {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, typ := range types {
		h := m[typ]
		switch {
		case !typ.Valid():
			warnings = append(warnings, &UnknownEventError{Key: key, Name: typ.String()})
		case h == nil:
			warnings = append(warnings, fmt.Errorf("%s %s: %w", key, typ, ErrNilHandler))
		default:
			r.appendLocked(scriptID, key, typ, h)
		}
	}
	return warnings
}

// RegisterNamed is the script-facing form of Register: event names are
// parsed with event.ParseType and unknown names are skipped with an
// *UnknownEventError warning. Entries are registered in name order.
func (r *Registry) RegisterNamed(scriptID string, key classkey.Key, named map[string]handler.Handler) []error {
	var warnings []error

	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		typ, err := event.ParseType(name)
		if err != nil {
			warnings = append(warnings, &UnknownEventError{Key: key, Name: name})
			continue
		}
		h := named[name]
		if h == nil {
			warnings = append(warnings, fmt.Errorf("%s %s: %w", key, name, ErrNilHandler))
			continue
		}
		r.appendLocked(scriptID, key, typ, h)
	}
	return warnings
}

// appendLocked publishes a new list with the binding appended.
// Caller must hold r.mu for writing.
func (r *Registry) appendLocked(scriptID string, key classkey.Key, typ event.Type, h handler.Handler) {
	r.seq++
	bk := bindingKey{key: key, typ: typ}
	old := r.bindings[bk]

	list := make([]Binding, len(old), len(old)+1)
	copy(list, old)
	list = append(list, Binding{
		ScriptID: scriptID,
		Key:      key,
		Type:     typ,
		Handler:  h,
		Seq:      r.seq,
	})

	r.bindings[bk] = list
	r.classes[key] = struct{}{}
}

// Lookup returns the bindings for (key, typ) in registration order, or nil.
// The returned slice is shared and must not be modified.
func (r *Registry) Lookup(key classkey.Key, typ event.Type) []Binding {
	r.mu.RLock()
	list := r.bindings[bindingKey{key: key, typ: typ}]
	r.mu.RUnlock()
	return list
}

// Has returns true if at least one handler is bound to (key, typ).
func (r *Registry) Has(key classkey.Key, typ event.Type) bool {
	return len(r.Lookup(key, typ)) > 0
}

// Len returns the total number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.seq)
}

// Keys returns every class key with at least one binding, sorted.
func (r *Registry) Keys() []classkey.Key {
	r.mu.RLock()
	keys := make([]classkey.Key, 0, len(r.classes))
	for k := range r.classes {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Package != keys[j].Package {
			return keys[i].Package < keys[j].Package
		}
		return keys[i].Class < keys[j].Class
	})
	return keys
}

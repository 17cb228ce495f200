// Package prefs is the key/value preference collaborator scripts read their
// settings from. Values are namespaced by the script's declared package.
// Persistence belongs to the host; Memory keeps values for the process
// lifetime only.
package prefs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidDefinition is returned for a preference definition without a name.
var ErrInvalidDefinition = errors.New("invalid preference definition")

// Store holds preference values.
type Store interface {
	// Get returns the value of name in namespace ns.
	Get(ns, name string) (any, bool)

	// Set stores v as the value of name in namespace ns.
	Set(ns, name string, v any)
}

// Definition describes one script preference. It replaces the positional
// setter variants scripts used to call with a single structured value.
type Definition struct {
	// Name is the key the value is stored under. Required.
	Name string

	// Title is the label shown in the host's settings screen.
	Title string

	// Summary is the longer description shown under the title.
	Summary string

	// Default is the value used until the user changes it.
	Default any
}

// Define seeds def.Default into store if the preference has no value yet and
// returns the effective value.
func Define(store Store, ns string, def Definition) (any, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidDefinition)
	}
	if v, ok := store.Get(ns, def.Name); ok {
		return v, nil
	}
	store.Set(ns, def.Name, def.Default)
	return def.Default, nil
}

type key struct {
	ns   string
	name string
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[key]any
	defs   map[string][]Definition
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[key]any),
		defs:   make(map[string][]Definition),
	}
}

// Get implements Store.
func (m *Memory) Get(ns, name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key{ns, name}]
	return v, ok
}

// Set implements Store.
func (m *Memory) Set(ns, name string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key{ns, name}] = v
}

// Define records def for ns and seeds its default. Definitions are kept so
// the host can list the settings a package exposes.
func (m *Memory) Define(ns string, def Definition) (any, error) {
	v, err := Define(m, ns, def)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.defs[ns] = append(m.defs[ns], def)
	m.mu.Unlock()
	return v, nil
}

// Definitions returns the definitions recorded for ns in definition order.
func (m *Memory) Definitions(ns string) []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Definition, len(m.defs[ns]))
	copy(out, m.defs[ns])
	return out
}

// Namespaces returns every namespace holding a value, sorted.
func (m *Memory) Namespaces() []string {
	m.mu.RLock()
	seen := make(map[string]struct{})
	for k := range m.values {
		seen[k.ns] = struct{}{}
	}
	m.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

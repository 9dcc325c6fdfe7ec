package classifier

import (
	"maps"
	"slices"
	"sync"
)

// ValueTable keeps the last value seen for every non-status name.
type ValueTable struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewValueTable returns an empty table.
func NewValueTable() *ValueTable {
	return &ValueTable{values: make(map[string]string)}
}

// Set stores value under name.
func (t *ValueTable) Set(name, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[name] = value
}

// Get returns the last value for name.
func (t *ValueTable) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

// Has reports whether name was ever received.
func (t *ValueTable) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Names returns the received names sorted.
func (t *ValueTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.values))
}

// Snapshot returns a copy of the table.
func (t *ValueTable) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.values)
}

// Len returns the number of names in the table.
func (t *ValueTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// Reset forgets every value.
func (t *ValueTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.values)
}

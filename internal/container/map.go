package container

import (
	"sync"

	"github.com/fren29/tiodb/internal/tiodata"
)

// Map is the in-memory keyed-map container. Keys are compared by
// printable form (TioData has no native hashable representation), and
// insertion order is tracked so Query/snapshot iteration is
// deterministic, which the reference's underlying map implementation
// does not guarantee but which makes tests reproducible.
type Map struct {
	mu     sync.Mutex
	order  []string
	byKey  map[string]tiodata.Data // canonical key values
	values map[string]record
	h      *hub
}

// NewMap creates an empty map container.
func NewMap() *Map {
	return &Map{
		byKey:  make(map[string]tiodata.Data),
		values: make(map[string]record),
		h:      newHub(),
	}
}

func (m *Map) Type() string  { return "map" }
func (m *Map) Ordered() bool { return false }

func (m *Map) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *Map) Get(key tiodata.Data) (tiodata.Data, tiodata.Data, error) {
	k := key.AsString()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.values[k]
	if !ok {
		return tiodata.None, tiodata.None, ErrNotFound
	}
	return r.value, r.metadata, nil
}

// Set implements the generic Container contract; meta overrides the
// notified event name, defaulting to "set" for a new key and "set" for
// an overwrite as well (the reference does not distinguish insert vs.
// update on maps; event_name for snapshot synthesis is always "set").
func (m *Map) Set(key, value tiodata.Data, meta string) error {
	name := meta
	if name == "" {
		name = "set"
	}
	k := key.AsString()

	m.mu.Lock()
	if _, exists := m.values[k]; !exists {
		m.order = append(m.order, k)
		m.byKey[k] = key
	}
	m.values[k] = record{value: value, metadata: tiodata.None}
	m.mu.Unlock()

	m.h.notify(name, key, value, tiodata.None)
	m.h.firePoppers(name, key, value, tiodata.None)
	return nil
}

// Delete removes a key; meta overrides the notified event name
// (defaulting to "delete").
func (m *Map) Delete(key tiodata.Data, meta string) error {
	name := meta
	if name == "" {
		name = "delete"
	}
	k := key.AsString()

	m.mu.Lock()
	r, ok := m.values[k]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.values, k)
	delete(m.byKey, k)
	for i, ok2 := range m.order {
		if ok2 == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.h.notify(name, key, r.value, r.metadata)
	return nil
}

// Clear empties the map and notifies "clear".
func (m *Map) Clear() {
	m.mu.Lock()
	m.order = nil
	m.byKey = make(map[string]tiodata.Data)
	m.values = make(map[string]record)
	m.mu.Unlock()

	m.h.notify("clear", tiodata.None, tiodata.None, tiodata.None)
}

func (m *Map) Query(start, limit int, _ tiodata.Data) (ResultSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start < 0 || start > len(m.order) {
		return nil, ErrBadStart
	}
	end := len(m.order)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	keys := make([]string, end-start)
	copy(keys, m.order[start:end])

	snap := make([]record, len(keys))
	keyVals := make([]tiodata.Data, len(keys))
	for i, k := range keys {
		snap[i] = m.values[k]
		keyVals[i] = m.byKey[k]
	}
	return &mapCursor{keys: keyVals, records: snap}, nil
}

func (m *Map) Subscribe(cb EventCallback, start string) (uint64, error) {
	return m.h.subscribe(cb), nil
}

func (m *Map) Unsubscribe(cookie uint64) { m.h.unsubscribe(cookie) }

func (m *Map) WaitAndPopNext(cb EventCallback) (uint64, error) {
	return m.h.armPop(cb), nil
}

func (m *Map) CancelWaitAndPopNext(popID uint64) { m.h.cancelPop(popID) }

type mapCursor struct {
	keys    []tiodata.Data
	records []record
	pos     int
}

func (c *mapCursor) GetRecord() (tiodata.Data, tiodata.Data, tiodata.Data, bool) {
	if c.pos >= len(c.records) {
		return tiodata.None, tiodata.None, tiodata.None, false
	}
	r := c.records[c.pos]
	return c.keys[c.pos], r.value, r.metadata, true
}

func (c *mapCursor) MoveNext() bool {
	c.pos++
	return c.pos < len(c.records)
}

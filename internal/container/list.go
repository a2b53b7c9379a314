package container

import (
	"sync"

	"github.com/fren29/tiodb/internal/tiodata"
)

// record is one list/map entry.
type record struct {
	value, metadata tiodata.Data
}

// List is the in-memory ordered-list container: push_back/push_front at
// the ends, insert/delete/set by index, a cursor-backed Query, and the
// shared subscribe/pop hub. Index-addressed, as spec.md requires for
// numeric-start snapshot subscriptions.
type List struct {
	mu      sync.Mutex
	records []record
	h       *hub
}

// NewList creates an empty list container.
func NewList() *List {
	return &List{h: newHub()}
}

func (l *List) Type() string  { return "list" }
func (l *List) Ordered() bool { return true }

func (l *List) RecordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *List) Get(key tiodata.Data) (tiodata.Data, tiodata.Data, error) {
	idx, ok := key.AsInt()
	if !ok {
		return tiodata.None, tiodata.None, ErrBadStart
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx < 0 || int(idx) >= len(l.records) {
		return tiodata.None, tiodata.None, ErrNotFound
	}
	r := l.records[idx]
	return r.value, r.metadata, nil
}

// PushBack appends a record and notifies "push_back" with the new
// record's index as key.
func (l *List) PushBack(value, metadata tiodata.Data) {
	l.mu.Lock()
	l.records = append(l.records, record{value, metadata})
	idx := len(l.records) - 1
	l.mu.Unlock()

	l.h.notify("push_back", tiodata.NewInt(int64(idx)), value, metadata)
	l.h.firePoppers("push_back", tiodata.NewInt(int64(idx)), value, metadata)
}

// PushFront prepends a record and notifies "push_front" with key 0.
func (l *List) PushFront(value, metadata tiodata.Data) {
	l.mu.Lock()
	l.records = append([]record{{value, metadata}}, l.records...)
	l.mu.Unlock()

	l.h.notify("push_front", tiodata.NewInt(0), value, metadata)
	l.h.firePoppers("push_front", tiodata.NewInt(0), value, metadata)
}

// PopBack removes the last record and notifies "pop_back". Returns
// false if the list was empty.
func (l *List) PopBack() bool {
	l.mu.Lock()
	if len(l.records) == 0 {
		l.mu.Unlock()
		return false
	}
	r := l.records[len(l.records)-1]
	l.records = l.records[:len(l.records)-1]
	l.mu.Unlock()

	l.h.notify("pop_back", tiodata.None, r.value, r.metadata)
	return true
}

// PopFront removes the first record and notifies "pop_front". Returns
// false if the list was empty.
func (l *List) PopFront() bool {
	l.mu.Lock()
	if len(l.records) == 0 {
		l.mu.Unlock()
		return false
	}
	r := l.records[0]
	l.records = l.records[1:]
	l.mu.Unlock()

	l.h.notify("pop_front", tiodata.None, r.value, r.metadata)
	return true
}

// InsertAt inserts a record at index and notifies "insert" with that
// index as key.
func (l *List) InsertAt(index int, value, metadata tiodata.Data) error {
	l.mu.Lock()
	if index < 0 || index > len(l.records) {
		l.mu.Unlock()
		return ErrNotFound
	}
	l.records = append(l.records, record{})
	copy(l.records[index+1:], l.records[index:])
	l.records[index] = record{value, metadata}
	l.mu.Unlock()

	l.h.notify("insert", tiodata.NewInt(int64(index)), value, metadata)
	return nil
}

// DeleteAt removes the record at index and notifies "delete" with that
// index as key.
func (l *List) DeleteAt(index int) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.records) {
		l.mu.Unlock()
		return ErrNotFound
	}
	r := l.records[index]
	l.records = append(l.records[:index], l.records[index+1:]...)
	l.mu.Unlock()

	l.h.notify("delete", tiodata.NewInt(int64(index)), r.value, r.metadata)
	return nil
}

// SetAt overwrites the record at index and notifies "set".
func (l *List) SetAt(index int, value, metadata tiodata.Data) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.records) {
		l.mu.Unlock()
		return ErrNotFound
	}
	l.records[index] = record{value, metadata}
	l.mu.Unlock()

	l.h.notify("set", tiodata.NewInt(int64(index)), value, metadata)
	return nil
}

// Clear empties the list and notifies "clear".
func (l *List) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()

	l.h.notify("clear", tiodata.None, tiodata.None, tiodata.None)
}

// Set implements the generic Container contract used by diff
// destinations: key is the index, meta overrides the notified event
// name (defaulting to "set"), and an index equal to the current length
// appends rather than failing, so a diff mirror that replays a
// push-style sequence of Set calls against a list destination behaves
// sensibly.
func (l *List) Set(key, value tiodata.Data, meta string) error {
	idx, ok := key.AsInt()
	if !ok {
		return ErrBadStart
	}
	name := meta
	if name == "" {
		name = "set"
	}

	l.mu.Lock()
	n := len(l.records)
	switch {
	case int(idx) == n:
		l.records = append(l.records, record{value, tiodata.None})
	case idx >= 0 && int(idx) < n:
		l.records[idx] = record{value, tiodata.None}
	default:
		l.mu.Unlock()
		return ErrNotFound
	}
	l.mu.Unlock()

	l.h.notify(name, key, value, tiodata.None)
	return nil
}

// Delete implements the generic Container contract; meta overrides the
// notified event name (defaulting to "delete").
func (l *List) Delete(key tiodata.Data, meta string) error {
	idx, ok := key.AsInt()
	if !ok {
		return ErrBadStart
	}
	name := meta
	if name == "" {
		name = "delete"
	}

	l.mu.Lock()
	if idx < 0 || int(idx) >= len(l.records) {
		l.mu.Unlock()
		return ErrNotFound
	}
	r := l.records[idx]
	l.records = append(l.records[:idx], l.records[idx+1:]...)
	l.mu.Unlock()

	l.h.notify(name, key, r.value, r.metadata)
	return nil
}

func (l *List) Query(start, limit int, _ tiodata.Data) (ResultSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if start < 0 || start > len(l.records) {
		return nil, ErrBadStart
	}
	end := len(l.records)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	snap := make([]record, end-start)
	copy(snap, l.records[start:end])
	return &listCursor{records: snap, baseIndex: start}, nil
}

func (l *List) Subscribe(cb EventCallback, start string) (uint64, error) {
	return l.h.subscribe(cb), nil
}

func (l *List) Unsubscribe(cookie uint64) { l.h.unsubscribe(cookie) }

func (l *List) WaitAndPopNext(cb EventCallback) (uint64, error) {
	return l.h.armPop(cb), nil
}

func (l *List) CancelWaitAndPopNext(popID uint64) { l.h.cancelPop(popID) }

// listCursor is a snapshot-at-creation ResultSet over a contiguous
// range of a List. Snapshotting at Query time avoids the cursor
// observing concurrent mutations mid-walk, matching the reference's
// single-threaded assumption (no container mutation races the snapshot
// pump on the real asio loop).
type listCursor struct {
	records   []record
	baseIndex int
	pos       int
}

func (c *listCursor) GetRecord() (tiodata.Data, tiodata.Data, tiodata.Data, bool) {
	if c.pos >= len(c.records) {
		return tiodata.None, tiodata.None, tiodata.None, false
	}
	r := c.records[c.pos]
	return tiodata.NewInt(int64(c.baseIndex + c.pos)), r.value, r.metadata, true
}

func (c *listCursor) MoveNext() bool {
	c.pos++
	return c.pos < len(c.records)
}

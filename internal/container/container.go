// Package container defines the contract the session subsystem uses to
// talk to Tio's storage engines (ordered lists and keyed maps), plus a
// small in-memory reference implementation so the session can be
// exercised and tested without a real storage backend. spec.md treats
// containers as external collaborators; this package gives that
// contract a concrete shape.
package container

import (
	"errors"

	"github.com/fren29/tiodb/internal/tiodata"
)

// EventCallback is invoked by a container whenever a mutation or a
// synthesized snapshot record occurs. metadata carries the free-form
// annotation events like "delete" style diff markers use.
type EventCallback func(eventName string, key, value, metadata tiodata.Data)

// Errors returned by Container implementations.
var (
	ErrNotFound       = errors.New("container: record not found")
	ErrBadStart       = errors.New("container: bad start parameter")
	ErrAlreadyPending = errors.New("container: wait_and_pop_next already pending")
)

// Container is the storage-engine contract a Session binds a handle
// to. Implementations must be safe for concurrent use: event callbacks
// may be invoked from a different goroutine than the one driving the
// mutating call, but never re-entrantly for the same container.
type Container interface {
	// Type returns the declared container type, e.g. "list" or "map".
	Type() string

	// Ordered reports whether the container is index-addressed (a
	// list) as opposed to key-addressed (a map). Determines whether a
	// numeric start parameter can drive an index-walk snapshot.
	Ordered() bool

	// RecordCount returns the number of records currently held.
	RecordCount() int

	// Get fetches a single record by key (index, for ordered
	// containers).
	Get(key tiodata.Data) (value, metadata tiodata.Data, err error)

	// Set upserts a record. meta is the event_name to report to
	// subscribers. Used directly by diff mirrors and (for maps) the
	// session's own dispatch if exposed by the server.
	Set(key, value tiodata.Data, meta string) error

	// Delete removes a record by key.
	Delete(key tiodata.Data, meta string) error

	// Query returns a lazy cursor over [start, start+limit). A limit
	// of 0 means "no limit", matching the reference's Query(start, 0,
	// criteria) snapshot-cursor usage. criteria is currently unused by
	// the in-memory implementation but kept in the signature to match
	// the external contract.
	Query(start int, limit int, criteria tiodata.Data) (ResultSet, error)

	// Subscribe registers cb for future mutations. start is an
	// opaque sentinel forwarded from the client; the container may
	// synthesize a snapshot via cb before returning depending on its
	// own policy (e.g. the "__none__" sentinel suppresses it). Returns
	// a cookie used to Unsubscribe.
	Subscribe(cb EventCallback, start string) (cookie uint64, err error)

	// Unsubscribe cancels a subscription previously returned by
	// Subscribe. Cookie 0 is a no-op.
	Unsubscribe(cookie uint64)

	// WaitAndPopNext arms a one-shot callback that fires the next time
	// a record becomes available to pop (list containers: push_back or
	// push_front; map containers: any set). Returns 0 if nothing is pending
	// (already satisfiable synchronously is implementation-defined).
	WaitAndPopNext(cb EventCallback) (popID uint64, err error)

	// CancelWaitAndPopNext cancels an armed pop.
	CancelWaitAndPopNext(popID uint64)
}

// ResultSet is a lazy cursor returned by Query, driving snapshot
// streaming in preference to indexed Get calls when available.
type ResultSet interface {
	// GetRecord reports the record at the cursor's current position.
	// ok is false once the cursor is exhausted.
	GetRecord() (key, value, metadata tiodata.Data, ok bool)

	// MoveNext advances the cursor. Returns false when there is
	// nothing left after advancing.
	MoveNext() bool
}

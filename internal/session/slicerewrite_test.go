package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/tiodata"
)

func newTestSession(t *testing.T) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := New(conn, nil)
	return s, conn
}

func listOf(values ...string) *container.List {
	c := container.NewList()
	for _, v := range values {
		c.PushBack(tiodata.NewString(v), tiodata.None)
	}
	return c
}

// Scenario: no window — every event is forwarded unmodified.
func TestDispatchSliceRewritePlainSubscribe(t *testing.T) {
	s, conn := newTestSession(t)
	sub := &Subscription{handle: 1, filterStart: 0, filterEnd: -1}

	s.dispatchSliceRewrite(sub, "push_back", tiodata.NewInt(3), tiodata.NewString("d"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 1)
	assert.Equal(t, "push_back", events[0].eventName)
	assert.EqualValues(t, 3, mustInt(events[0].key))
	assert.Equal(t, "d", events[0].value.AsString())
}

// Scenario: windowed [1,2] subscribe, push_back at index 2 (inside the
// window) is forwarded with its window-local index.
func TestDispatchSliceRewriteWindowedPushBackInWindow(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c") // the push_back that produced index 2 already landed
	sub := &Subscription{handle: 1, container: c, filterStart: 1, filterEnd: 2}

	s.dispatchSliceRewrite(sub, "push_back", tiodata.NewInt(2), tiodata.NewString("c"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 1)
	assert.Equal(t, "push_back", events[0].eventName)
	assert.EqualValues(t, 1, mustInt(events[0].key)) // 2 - S(1) = 1
}

// Scenario: push_back past the window's right edge is dropped entirely.
func TestDispatchSliceRewriteWindowedPushBackOutOfWindow(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c", "d", "e", "f")
	sub := &Subscription{handle: 1, container: c, filterStart: 0, filterEnd: 1}

	s.dispatchSliceRewrite(sub, "push_back", tiodata.NewInt(5), tiodata.NewString("f"), tiodata.None)

	assert.Empty(t, conn.Bytes())
}

// The worked example from this package's slice-rewrite rule: list
// [a,b,c,d,e], window [1,3]. delete(key=2) removes "c", leaving
// [a,b,d,e]. Expected wire order: a refill push_back at key 3 carrying
// the post-mutation tail "e" (container[E] refetched, not the deleted
// row's own value), then a delete at the window-local index 1.
func TestDispatchSliceRewriteDeleteRefillsFromContainer(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c", "d", "e")
	require.NoError(t, c.DeleteAt(2))
	sub := &Subscription{handle: 1, container: c, filterStart: 1, filterEnd: 3}

	s.dispatchSliceRewrite(sub, "delete", tiodata.NewInt(2), tiodata.NewString("c"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 2)

	assert.Equal(t, "push_back", events[0].eventName)
	assert.EqualValues(t, 3, mustInt(events[0].key))
	assert.Equal(t, "e", events[0].value.AsString())

	assert.Equal(t, "delete", events[1].eventName)
	assert.EqualValues(t, 1, mustInt(events[1].key))
}

// A delete at or before the window's left edge shifts the window: a
// refill push_back for the new right-edge record, then a pop_front —
// the primary delete itself is never forwarded since the deleted
// position was already outside (or at) the client's view.
func TestDispatchSliceRewriteDeleteAtLeftEdgeShrinksOnly(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c")
	require.NoError(t, c.DeleteAt(0)) // list is now [b, c]
	sub := &Subscription{handle: 1, container: c, filterStart: 0, filterEnd: 1}

	s.dispatchSliceRewrite(sub, "delete", tiodata.NewInt(0), tiodata.NewString("a"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 2)
	assert.Equal(t, "push_back", events[0].eventName)
	assert.Equal(t, "c", events[0].value.AsString())
	assert.Equal(t, "pop_front", events[1].eventName)
}

// Insert before the window shifts it right — a push_front carrying
// the inserted value, and a pop_back for whatever record the window's
// right edge pushed out — with no "insert" forwarded, since the
// insertion point itself is outside the window.
func TestDispatchSliceRewriteInsertBeforeWindow(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c")
	require.NoError(t, c.InsertAt(0, tiodata.NewString("z"), tiodata.None))
	// list is now [z, a, b, c]. window [1,2].
	sub := &Subscription{handle: 1, container: c, filterStart: 1, filterEnd: 2}

	s.dispatchSliceRewrite(sub, "insert", tiodata.NewInt(0), tiodata.NewString("z"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 2)
	assert.Equal(t, "push_front", events[0].eventName)
	assert.Equal(t, "z", events[0].value.AsString())
	assert.Equal(t, "pop_back", events[1].eventName)
	assert.EqualValues(t, 1, mustInt(events[1].key)) // E(2) - S(1) = 1
}

// set within the window is forwarded with a window-local index; set
// outside the window is dropped.
func TestDispatchSliceRewriteSet(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("a", "b", "c", "d", "e", "f")
	sub := &Subscription{handle: 1, container: c, filterStart: 2, filterEnd: 4}

	s.dispatchSliceRewrite(sub, "set", tiodata.NewInt(3), tiodata.NewString("x"), tiodata.None)
	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 1)
	assert.EqualValues(t, 1, mustInt(events[0].key))

	conn2 := newFakeConn()
	s2 := New(conn2, nil)
	sub2 := &Subscription{handle: 1, container: c, filterStart: 2, filterEnd: 4}
	s2.dispatchSliceRewrite(sub2, "set", tiodata.NewInt(9), tiodata.NewString("x"), tiodata.None)
	assert.Empty(t, conn2.Bytes())
}

// pop_front is treated as delete at index 0 before the rewrite rule
// applies: with window [0,0] and exactly one record left after the
// pop, the refill push_back fires before the shrinking pop_front.
func TestDispatchSliceRewritePopFrontIsTreatedAsDeleteAtZero(t *testing.T) {
	s, conn := newTestSession(t)
	c := listOf("b") // post-pop state: "a" already removed
	sub := &Subscription{handle: 1, container: c, filterStart: 0, filterEnd: 0}

	s.dispatchSliceRewrite(sub, "pop_front", tiodata.None, tiodata.NewString("a"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	require.Len(t, events, 2)
	assert.Equal(t, "push_back", events[0].eventName)
	assert.Equal(t, "b", events[0].value.AsString())
	assert.Equal(t, "pop_front", events[1].eventName)
}

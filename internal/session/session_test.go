package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/container"
	"github.com/fren29/tiodb/internal/tiodata"
)

func TestRegisterAndGetContainer(t *testing.T) {
	s, _ := newTestSession(t)
	c := container.NewList()

	h := s.RegisterContainer("mylist", c)
	assert.NotZero(t, h)

	got, name, err := s.GetContainer(h)
	require.NoError(t, err)
	assert.Equal(t, "mylist", name)
	assert.Equal(t, c, got)

	_, _, err = s.GetContainer(h + 1)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestSubscribePlainForwardsLiveEvents(t *testing.T) {
	s, conn := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)

	require.NoError(t, s.Subscribe(h, "__none__", -1, true))
	c.PushBack(tiodata.NewString("a"), tiodata.None)

	events := readEvents(t, conn.Bytes())
	// answer ok + exactly one push_back event.
	require.Len(t, events, 1)
	assert.Contains(t, string(conn.Bytes()), "answer ok")
	assert.Contains(t, string(conn.Bytes()), "push_back")
}

func TestSubscribeTwiceAnswersError(t *testing.T) {
	s, conn := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)

	require.NoError(t, s.Subscribe(h, "__none__", -1, true))
	before := len(conn.Bytes())
	require.NoError(t, s.Subscribe(h, "__none__", -1, true))

	added := string(conn.Bytes()[before:])
	assert.Contains(t, added, "answer error already subscribed")
}

func TestSubscribeInvalidHandle(t *testing.T) {
	s, _ := newTestSession(t)
	err := s.Subscribe(999, "", -1, true)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s, _ := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)

	require.NoError(t, s.Subscribe(h, "__none__", -1, true))
	s.Unsubscribe(h)
	s.Unsubscribe(h) // no panic, no-op

	s.mu.Lock()
	_, stillSubscribed := s.subscriptions[h]
	s.mu.Unlock()
	assert.False(t, stillSubscribed)
}

func TestSnapshotThenLiveDeliversAllThenStreams(t *testing.T) {
	s, conn := newTestSession(t)
	c := container.NewList()
	c.PushBack(tiodata.NewString("a"), tiodata.None)
	c.PushBack(tiodata.NewString("b"), tiodata.None)
	h := s.RegisterContainer("l", c)

	require.NoError(t, s.Subscribe(h, "0", -1, true))

	events := readEvents(t, conn.Bytes())
	var values []string
	for _, e := range events {
		if e.eventName == "push_back" {
			values = append(values, e.value.AsString())
		}
	}
	assert.Equal(t, []string{"a", "b"}, values)

	c.PushBack(tiodata.NewString("c"), tiodata.None)
	events = readEvents(t, conn.Bytes())
	assert.Equal(t, "c", events[len(events)-1].value.AsString())
}

func TestBinaryWaitAndPopNextAlreadyPending(t *testing.T) {
	s, _ := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)

	require.NoError(t, s.BinaryWaitAndPopNext(h))
	err := s.BinaryWaitAndPopNext(h)
	assert.ErrorIs(t, err, ErrAlreadyPendingPop)
}

func TestBinaryWaitAndPopNextFiresOnNextPush(t *testing.T) {
	s, conn := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)
	s.SetBinaryProtocol()

	require.NoError(t, s.BinaryWaitAndPopNext(h))
	c.PushBack(tiodata.NewString("x"), tiodata.None)

	assert.NotEmpty(t, conn.Bytes())

	s.mu.Lock()
	_, pending := s.poppers[h]
	s.mu.Unlock()
	assert.False(t, pending)
}

func TestSetupDiffMirrorsSetAndDelete(t *testing.T) {
	s, _ := newTestSession(t)
	src := container.NewMap()
	dst := container.NewMap()
	h := s.RegisterContainer("src", src)

	require.NoError(t, s.SetupDiff(h, dst))

	require.NoError(t, src.Set(tiodata.NewString("k"), tiodata.NewString("v0"), ""))
	v, _, err := dst.Get(tiodata.NewString("k"))
	require.NoError(t, err)
	assert.Equal(t, "v0", v.AsString())

	require.NoError(t, src.Delete(tiodata.NewString("k"), ""))
	_, _, err = dst.Get(tiodata.NewString("k"))
	assert.ErrorIs(t, err, container.ErrNotFound)

	dest, ok := s.DiffDestination(h)
	require.True(t, ok)
	assert.Equal(t, dst, dest)
}

func TestCloseTearsDownSubscriptionsAndHandles(t *testing.T) {
	s, _ := newTestSession(t)
	c := container.NewList()
	h := s.RegisterContainer("l", c)
	require.NoError(t, s.Subscribe(h, "__none__", -1, true))

	s.Close()
	assert.False(t, s.IsValid())

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.subscriptions)
	assert.Empty(t, s.handles)
	assert.Empty(t, s.diffs)
	assert.Empty(t, s.poppers)
}

func TestBackpressureHardCapTearsDownSession(t *testing.T) {
	s, conn := newTestSession(t)

	oldCap := HardSendCap
	HardSendCap = 16
	defer func() { HardSendCap = oldCap }()

	s.enqueue(make([]byte, 8))  // under the cap: written
	s.enqueue(make([]byte, 32)) // pushes pending bytes over the hard cap

	assert.False(t, s.IsValid())
	assert.Len(t, conn.Bytes(), 8) // the over-cap frame was never written
}

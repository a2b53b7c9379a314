package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/tiodata"
)

func TestListPushPop(t *testing.T) {
	l := NewList()
	l.PushBack(tiodata.NewString("a"), tiodata.None)
	l.PushBack(tiodata.NewString("b"), tiodata.None)
	l.PushFront(tiodata.NewString("z"), tiodata.None)

	assert.Equal(t, 3, l.RecordCount())

	v, _, err := l.Get(tiodata.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, "z", v.AsString())

	assert.True(t, l.PopFront())
	assert.True(t, l.PopBack())
	assert.Equal(t, 1, l.RecordCount())

	assert.True(t, l.PopBack())
	assert.False(t, l.PopBack())
}

func TestListInsertDeleteSet(t *testing.T) {
	l := NewList()
	for _, s := range []string{"a", "b", "c"} {
		l.PushBack(tiodata.NewString(s), tiodata.None)
	}

	require.NoError(t, l.InsertAt(1, tiodata.NewString("x"), tiodata.None))
	v, _, _ := l.Get(tiodata.NewInt(1))
	assert.Equal(t, "x", v.AsString())

	require.NoError(t, l.DeleteAt(0))
	v, _, _ = l.Get(tiodata.NewInt(0))
	assert.Equal(t, "x", v.AsString())

	require.NoError(t, l.SetAt(0, tiodata.NewString("y"), tiodata.None))
	v, _, _ = l.Get(tiodata.NewInt(0))
	assert.Equal(t, "y", v.AsString())

	assert.ErrorIs(t, l.DeleteAt(99), ErrNotFound)
}

func TestListSubscribeNotify(t *testing.T) {
	l := NewList()
	var got []string
	cookie, err := l.Subscribe(func(eventName string, key, value, metadata tiodata.Data) {
		got = append(got, eventName)
	}, "")
	require.NoError(t, err)

	l.PushBack(tiodata.NewString("a"), tiodata.None)
	l.PushFront(tiodata.NewString("b"), tiodata.None)
	l.Unsubscribe(cookie)
	l.PushBack(tiodata.NewString("c"), tiodata.None)

	assert.Equal(t, []string{"push_back", "push_front"}, got)
}

func TestListWaitAndPopNextFiresOnce(t *testing.T) {
	l := NewList()
	fired := 0
	popID, err := l.WaitAndPopNext(func(eventName string, key, value, metadata tiodata.Data) {
		fired++
	})
	require.NoError(t, err)
	assert.NotZero(t, popID)

	l.PushBack(tiodata.NewString("a"), tiodata.None)
	l.PushBack(tiodata.NewString("b"), tiodata.None)

	assert.Equal(t, 1, fired)
}

func TestListQueryCursor(t *testing.T) {
	l := NewList()
	for _, s := range []string{"a", "b", "c", "d"} {
		l.PushBack(tiodata.NewString(s), tiodata.None)
	}

	rs, err := l.Query(1, 2, tiodata.None)
	require.NoError(t, err)

	k, v, _, ok := rs.GetRecord()
	require.True(t, ok)
	assert.EqualValues(t, 1, mustInt(k))
	assert.Equal(t, "b", v.AsString())

	require.True(t, rs.MoveNext())
	_, v, _, ok = rs.GetRecord()
	require.True(t, ok)
	assert.Equal(t, "c", v.AsString())

	assert.False(t, rs.MoveNext())
	_, _, _, ok = rs.GetRecord()
	assert.False(t, ok)
}

func mustInt(d tiodata.Data) int64 {
	n, _ := d.AsInt()
	return n
}

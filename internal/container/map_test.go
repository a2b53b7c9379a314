package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/tiodata"
)

func TestMapSetGetDelete(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set(tiodata.NewString("k1"), tiodata.NewString("v1"), ""))
	assert.Equal(t, 1, m.RecordCount())

	v, _, err := m.Get(tiodata.NewString("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", v.AsString())

	require.NoError(t, m.Set(tiodata.NewString("k1"), tiodata.NewString("v2"), ""))
	assert.Equal(t, 1, m.RecordCount(), "overwrite must not grow the key count")

	require.NoError(t, m.Delete(tiodata.NewString("k1"), ""))
	assert.Equal(t, 0, m.RecordCount())
	assert.ErrorIs(t, m.Delete(tiodata.NewString("k1"), ""), ErrNotFound)
}

func TestMapClearNotifies(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set(tiodata.NewString("a"), tiodata.NewInt(1), ""))

	var events []string
	_, err := m.Subscribe(func(eventName string, key, value, metadata tiodata.Data) {
		events = append(events, eventName)
	}, "")
	require.NoError(t, err)

	m.Clear()
	assert.Equal(t, []string{"clear"}, events)
	assert.Equal(t, 0, m.RecordCount())
}

func TestMapQueryPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set(tiodata.NewString("b"), tiodata.NewInt(2), ""))
	require.NoError(t, m.Set(tiodata.NewString("a"), tiodata.NewInt(1), ""))

	rs, err := m.Query(0, 0, tiodata.None)
	require.NoError(t, err)

	k, _, _, ok := rs.GetRecord()
	require.True(t, ok)
	assert.Equal(t, "b", k.AsString())

	require.True(t, rs.MoveNext())
	k, _, _, ok = rs.GetRecord()
	require.True(t, ok)
	assert.Equal(t, "a", k.AsString())

	assert.False(t, rs.MoveNext())
}

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fren29/tiodb/internal/tiodata"
)

func TestEncodeDecodeFieldsRoundTrip(t *testing.T) {
	fields := []Field{
		{ID: FieldHandle, Type: tiodata.Int, Data: []byte{1, 0, 0, 0}},
		{ID: FieldKey, Type: tiodata.String, Data: []byte("abc")},
	}

	body := EncodeFields(fields)
	decoded, err := DecodeFields(body)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, fields[0].Data, decoded[0].Data)
	assert.Equal(t, fields[1].Data, decoded[1].Data)
	assert.Equal(t, tiodata.String, decoded[1].Type)
}

func TestDecodeFieldsRejectsTruncatedBody(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestMessageRoundTripUncompressed(t *testing.T) {
	fields := BuildEventMessage(5, "set", tiodata.NewInt(1), tiodata.NewString("v"), tiodata.None)
	raw := MessageBytes(fields)

	r := bytes.NewReader(raw)
	bodyLen, compressed, err := ReadHeader(r)
	require.NoError(t, err)
	assert.False(t, compressed)

	body, err := ReadBody(r, bodyLen, compressed)
	require.NoError(t, err)

	decoded, err := DecodeFields(body)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded)
}

func TestMessageRoundTripCompressedAboveThreshold(t *testing.T) {
	big := tiodata.NewString(stringOfLen(2000))
	fields := BuildEventMessage(9, "push_back", tiodata.NewInt(0), big, tiodata.None)
	raw := MessageBytes(fields)

	r := bytes.NewReader(raw)
	bodyLen, compressed, err := ReadHeader(r)
	require.NoError(t, err)
	assert.True(t, compressed)

	body, err := ReadBody(r, bodyLen, compressed)
	require.NoError(t, err)

	decoded, err := DecodeFields(body)
	require.NoError(t, err)

	var gotValue []byte
	for _, f := range decoded {
		if f.ID == FieldValue {
			gotValue = f.Data
		}
	}
	assert.Equal(t, big.Bytes(), gotValue)
}

func TestEventNameToCode(t *testing.T) {
	assert.Equal(t, EventPushBack, EventNameToCode("push_back"))
	assert.Equal(t, EventDelete, EventNameToCode("pop_front"))
	assert.Equal(t, EventDelete, EventNameToCode("pop_back"))
	assert.Equal(t, EventNone, EventNameToCode("unknown"))
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return string(b)
}

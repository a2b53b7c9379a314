package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"

	"github.com/fren29/tiodb/internal/tiodata"
)

// FieldID identifies one TLV field in a binary message body, per
// spec.md §6's "field-id constants".
type FieldID uint16

const (
	FieldCommand FieldID = iota + 1
	FieldHandle
	FieldEvent
	FieldQueryID
	FieldKey
	FieldValue
	FieldMetadata
)

// Command codes carried in the FieldCommand field of a server->client
// message.
const (
	CommandEvent     uint32 = 1
	CommandQueryItem uint32 = 2
	CommandAnswer    uint32 = 3
)

// Request codes carried in the FieldCommand field of a client->server
// binary message, the counterpart of the text protocol's verb word.
const (
	RequestSubscribe uint32 = 1
	RequestQuery     uint32 = 2
)

// Event codes, per spec.md §6's event-name↔code mapping. Unknown names
// map to 0.
const (
	EventNone           uint32 = 0
	EventPushBack        uint32 = 1
	EventPushFront       uint32 = 2
	EventDelete          uint32 = 3
	EventClear           uint32 = 4
	EventSet             uint32 = 5
	EventInsert          uint32 = 6
	EventWaitAndPopNext  uint32 = 7
	EventSnapshotEnd     uint32 = 8
)

// EventNameToCode maps a session event name to its wire code.
func EventNameToCode(eventName string) uint32 {
	switch eventName {
	case "push_back":
		return EventPushBack
	case "push_front":
		return EventPushFront
	case "pop_back", "pop_front", "delete":
		return EventDelete
	case "clear":
		return EventClear
	case "set":
		return EventSet
	case "insert":
		return EventInsert
	case "wnp_next":
		return EventWaitAndPopNext
	case "snapshot_end":
		return EventSnapshotEnd
	default:
		return EventNone
	}
}

// Field is one decoded TLV entry from a binary message body.
type Field struct {
	ID   FieldID
	Type tiodata.Kind
	Data []byte
}

// dataTypeByte/byteToDataType round-trip a tiodata.Kind on the wire as
// a single byte, the binary counterpart of text mode's <type> tag.
func dataTypeByte(k tiodata.Kind) byte {
	switch k {
	case tiodata.Int:
		return 'i'
	case tiodata.Double:
		return 'd'
	case tiodata.String:
		return 's'
	default:
		return 'n'
	}
}

func byteToDataType(b byte) tiodata.Kind {
	switch b {
	case 'i':
		return tiodata.Int
	case 'd':
		return tiodata.Double
	case 's':
		return tiodata.String
	default:
		return tiodata.Absent
	}
}

// snappyThreshold is the body size above which MessageBytes
// snappy-compresses the encoded fields, grounded on xtaci-kcptun's use
// of snappy for tunnel traffic; small control/event messages are left
// uncompressed since the framing overhead would dominate.
const snappyThreshold = 1024

// headerSize is the fixed binary header: 1 flags byte + 4-byte
// message_size (little-endian, matching the teacher's frame header
// encoding convention in smux's rawHeader).
const headerSize = 5

const flagCompressed = 1 << 0

// EncodeFields serializes fields into a body buffer: each field is
// id(2) + type(1) + len(4) + bytes.
func EncodeFields(fields []Field) []byte {
	var b bytes.Buffer
	for _, f := range fields {
		var hdr [7]byte
		binary.LittleEndian.PutUint16(hdr[0:2], uint16(f.ID))
		hdr[2] = dataTypeByte(f.Type)
		binary.LittleEndian.PutUint32(hdr[3:7], uint32(len(f.Data)))
		b.Write(hdr[:])
		b.Write(f.Data)
	}
	return b.Bytes()
}

// DecodeFields parses a body buffer produced by EncodeFields.
func DecodeFields(body []byte) ([]Field, error) {
	var out []Field
	for len(body) > 0 {
		if len(body) < 7 {
			return nil, ErrProtocolViolation
		}
		id := FieldID(binary.LittleEndian.Uint16(body[0:2]))
		typ := byteToDataType(body[2])
		n := binary.LittleEndian.Uint32(body[3:7])
		body = body[7:]
		if uint32(len(body)) < n {
			return nil, ErrProtocolViolation
		}
		out = append(out, Field{ID: id, Type: typ, Data: body[:n]})
		body = body[n:]
	}
	return out, nil
}

// MessageBytes composes a full envelope (header + optionally
// snappy-compressed body), for the send pipeline to enqueue. Binary
// messages are composed as one flat buffer rather than separate
// header/body segments: unlike a text event's variable-width
// key/value/metadata lines, the binary header's sole job is framing a
// single length-prefixed TLV body, so there is no second meaningful
// segment to scatter-gather.
func MessageBytes(fields []Field) []byte {
	body := EncodeFields(fields)

	var flags byte
	if len(body) > snappyThreshold {
		body = snappy.Encode(nil, body)
		flags = flagCompressed
	}

	var hdr [headerSize]byte
	hdr[0] = flags
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(body)))

	return append(hdr[:], body...)
}

// ReadHeader reads and parses the fixed-size binary header, returning
// the (possibly compressed) body length and whether the body is
// snappy-compressed.
func ReadHeader(r io.Reader) (bodyLen uint32, compressed bool, err error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, false, err
	}
	compressed = hdr[0]&flagCompressed != 0
	bodyLen = binary.LittleEndian.Uint32(hdr[1:5])
	if bodyLen >= MaxCommandPayload {
		return 0, false, ErrProtocolViolation
	}
	return bodyLen, compressed, nil
}

// ReadBody reads bodyLen raw bytes and decompresses them if compressed.
func ReadBody(r io.Reader, bodyLen uint32, compressed bool) ([]byte, error) {
	buf := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if compressed {
		return snappy.Decode(nil, buf)
	}
	return buf, nil
}

// BuildEventMessage composes the fields for an EVENT message: COMMAND,
// HANDLE, EVENT and the present key/value/metadata fields.
func BuildEventMessage(handle uint64, eventName string, key, value, metadata tiodata.Data) []Field {
	var hb [4]byte
	binary.LittleEndian.PutUint32(hb[:], uint32(handle))

	var eb [4]byte
	binary.LittleEndian.PutUint32(eb[:], EventNameToCode(eventName))

	var cb [4]byte
	binary.LittleEndian.PutUint32(cb[:], CommandEvent)

	fields := []Field{
		{ID: FieldCommand, Type: tiodata.Int, Data: cb[:]},
		{ID: FieldHandle, Type: tiodata.Int, Data: hb[:]},
		{ID: FieldEvent, Type: tiodata.Int, Data: eb[:]},
	}
	if !key.IsAbsent() {
		fields = append(fields, Field{ID: FieldKey, Type: key.Kind(), Data: key.Bytes()})
	}
	if !value.IsAbsent() {
		fields = append(fields, Field{ID: FieldValue, Type: value.Kind(), Data: value.Bytes()})
	}
	if !metadata.IsAbsent() {
		fields = append(fields, Field{ID: FieldMetadata, Type: metadata.Kind(), Data: metadata.Bytes()})
	}
	return fields
}

// BuildQueryItemMessage composes the fields for a QUERY_ITEM message.
// An empty (ok=false) record signals end-of-stream with no data
// fields, per spec.md §6.
func BuildQueryItemMessage(queryID uint64, key, value, metadata tiodata.Data, ok bool) []Field {
	var cb [4]byte
	binary.LittleEndian.PutUint32(cb[:], CommandQueryItem)
	var qb [4]byte
	binary.LittleEndian.PutUint32(qb[:], uint32(queryID))

	fields := []Field{
		{ID: FieldCommand, Type: tiodata.Int, Data: cb[:]},
		{ID: FieldQueryID, Type: tiodata.Int, Data: qb[:]},
	}
	if !ok {
		return fields
	}
	if !key.IsAbsent() {
		fields = append(fields, Field{ID: FieldKey, Type: key.Kind(), Data: key.Bytes()})
	}
	if !value.IsAbsent() {
		fields = append(fields, Field{ID: FieldValue, Type: value.Kind(), Data: value.Bytes()})
	}
	if !metadata.IsAbsent() {
		fields = append(fields, Field{ID: FieldMetadata, Type: metadata.Kind(), Data: metadata.Bytes()})
	}
	return fields
}

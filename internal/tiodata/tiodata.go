// Package tiodata implements TioData, the tagged scalar value that
// flows through containers, events and the wire layer.
package tiodata

import (
	"fmt"
	"strconv"
)

// Kind identifies which variant a Data value holds.
type Kind int

const (
	// Absent marks a value that was never set (TIONULL in the source).
	Absent Kind = iota
	Int
	String
	Double
)

// Data is a tagged union of absent/int/string/double, the wire-level
// scalar type used for container keys, values and metadata.
type Data struct {
	kind Kind
	i    int64
	s    []byte
	d    float64
}

// None is the absent value, equivalent to TIONULL.
var None = Data{kind: Absent}

func NewInt(v int64) Data    { return Data{kind: Int, i: v} }
func NewString(v string) Data { return Data{kind: String, s: []byte(v)} }
func NewBytes(v []byte) Data  { return Data{kind: String, s: v} }
func NewDouble(v float64) Data { return Data{kind: Double, d: v} }

// Kind reports which variant is held.
func (d Data) Kind() Kind { return d.kind }

// IsAbsent mirrors the C++ `if(!data)` null check.
func (d Data) IsAbsent() bool { return d.kind == Absent }

// AsInt returns the integer value, converting string/double forms the
// way the reference's lexical_cast-based AsInt does on a best-effort
// basis. Only used where the caller already expects an int key.
func (d Data) AsInt() (int64, bool) {
	switch d.kind {
	case Int:
		return d.i, true
	case Double:
		return int64(d.d), true
	case String:
		n, err := strconv.ParseInt(string(d.s), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsString returns the printable form used by the wire layer.
func (d Data) AsString() string {
	switch d.kind {
	case Absent:
		return ""
	case Int:
		return strconv.FormatInt(d.i, 10)
	case String:
		return string(d.s)
	case Double:
		return strconv.FormatFloat(d.d, 'g', -1, 64)
	default:
		return ""
	}
}

// Bytes returns the raw bytes of the printable form.
func (d Data) Bytes() []byte {
	if d.kind == String {
		return d.s
	}
	return []byte(d.AsString())
}

// Len is the byte length of the printable form, the <len> field on
// the wire.
func (d Data) Len() int {
	if d.kind == Absent {
		return 0
	}
	return len(d.Bytes())
}

// TypeTag is the short wire type tag: int, string or double.
func (d Data) TypeTag() string {
	switch d.kind {
	case Int:
		return "int"
	case Double:
		return "double"
	default:
		return "string"
	}
}

// Equal compares two Data values by kind and printable value.
func (d Data) Equal(other Data) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case Absent:
		return true
	case Int:
		return d.i == other.i
	case Double:
		return d.d == other.d
	case String:
		return string(d.s) == string(other.s)
	default:
		return false
	}
}

// String implements fmt.Stringer for debugging/logging.
func (d Data) String() string {
	if d.IsAbsent() {
		return "<absent>"
	}
	return fmt.Sprintf("%s(%s)", d.TypeTag(), d.AsString())
}

// Package record defines the versioned keyed tuple that flows through the
// write-ahead log, the memtable, and on-disk pages.
package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nainya/shdb/pkg/shdberrors"
)

// Kind tags the variant carried by a FieldValue.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUInt64
	KindFloat64
	KindString
)

// FieldValue is a tagged union over the value types a record field may hold.
// NaN floats are rejected at construction, so every live FieldValue compares
// with ordinary equality.
type FieldValue struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

// NullValue returns the Null variant.
func NullValue() FieldValue { return FieldValue{kind: KindNull} }

// BoolValue wraps a bool.
func BoolValue(v bool) FieldValue { return FieldValue{kind: KindBool, b: v} }

// Int64Value wraps a signed 64-bit integer.
func Int64Value(v int64) FieldValue { return FieldValue{kind: KindInt64, i: v} }

// UInt64Value wraps an unsigned 64-bit integer.
func UInt64Value(v uint64) FieldValue { return FieldValue{kind: KindUInt64, u: v} }

// Float64Value wraps a float64. Returns ErrInvalidValue if v is NaN.
func Float64Value(v float64) (FieldValue, error) {
	if math.IsNaN(v) {
		return FieldValue{}, fmt.Errorf("float field value is NaN: %w", shdberrors.ErrInvalidValue)
	}
	return FieldValue{kind: KindFloat64, f: v}, nil
}

// StringValue wraps a string.
func StringValue(v string) FieldValue { return FieldValue{kind: KindString, s: v} }

// Kind returns the variant tag.
func (v FieldValue) Kind() Kind { return v.kind }

// Bool returns the bool payload and whether v is a KindBool.
func (v FieldValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int64 returns the int64 payload and whether v is a KindInt64.
func (v FieldValue) Int64() (int64, bool) { return v.i, v.kind == KindInt64 }

// UInt64 returns the uint64 payload and whether v is a KindUInt64.
func (v FieldValue) UInt64() (uint64, bool) { return v.u, v.kind == KindUInt64 }

// Float64 returns the float64 payload and whether v is a KindFloat64.
func (v FieldValue) Float64() (float64, bool) { return v.f, v.kind == KindFloat64 }

// String returns the string payload and whether v is a KindString.
func (v FieldValue) String() (string, bool) { return v.s, v.kind == KindString }

// Equal reports structural equality between two FieldValues.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt64:
		return v.i == other.i
	case KindUInt64:
		return v.u == other.u
	case KindFloat64:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	default:
		return false
	}
}

// EncodedSize returns the number of bytes Encode writes.
func (v FieldValue) EncodedSize() int {
	switch v.kind {
	case KindNull:
		return 1
	case KindBool:
		return 2
	case KindInt64, KindUInt64, KindFloat64:
		return 9
	case KindString:
		return 1 + 4 + len(v.s)
	default:
		return 1
	}
}

// Encode appends the binary form of v to buf and returns the extended slice.
func (v FieldValue) Encode(buf []byte) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindUInt64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], v.u)
		buf = append(buf, tmp[:]...)
	case KindFloat64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.f))
		buf = append(buf, tmp[:]...)
	case KindString:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.s)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, v.s...)
	}
	return buf
}

// DecodeFieldValue parses a FieldValue from the front of buf and returns the
// remaining, unconsumed bytes.
func DecodeFieldValue(buf []byte) (FieldValue, []byte, error) {
	if len(buf) < 1 {
		return FieldValue{}, nil, fmt.Errorf("field value truncated: %w", shdberrors.ErrCorrupt)
	}
	kind := Kind(buf[0])
	rest := buf[1:]
	switch kind {
	case KindNull:
		return FieldValue{kind: KindNull}, rest, nil
	case KindBool:
		if len(rest) < 1 {
			return FieldValue{}, nil, fmt.Errorf("bool field value truncated: %w", shdberrors.ErrCorrupt)
		}
		return FieldValue{kind: KindBool, b: rest[0] != 0}, rest[1:], nil
	case KindInt64:
		if len(rest) < 8 {
			return FieldValue{}, nil, fmt.Errorf("int64 field value truncated: %w", shdberrors.ErrCorrupt)
		}
		return FieldValue{kind: KindInt64, i: int64(binary.LittleEndian.Uint64(rest[:8]))}, rest[8:], nil
	case KindUInt64:
		if len(rest) < 8 {
			return FieldValue{}, nil, fmt.Errorf("uint64 field value truncated: %w", shdberrors.ErrCorrupt)
		}
		return FieldValue{kind: KindUInt64, u: binary.LittleEndian.Uint64(rest[:8])}, rest[8:], nil
	case KindFloat64:
		if len(rest) < 8 {
			return FieldValue{}, nil, fmt.Errorf("float64 field value truncated: %w", shdberrors.ErrCorrupt)
		}
		return FieldValue{kind: KindFloat64, f: math.Float64frombits(binary.LittleEndian.Uint64(rest[:8]))}, rest[8:], nil
	case KindString:
		if len(rest) < 4 {
			return FieldValue{}, nil, fmt.Errorf("string field value truncated: %w", shdberrors.ErrCorrupt)
		}
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(len(rest)) < uint64(n) {
			return FieldValue{}, nil, fmt.Errorf("string field value truncated: %w", shdberrors.ErrCorrupt)
		}
		return FieldValue{kind: KindString, s: string(rest[:n])}, rest[n:], nil
	default:
		return FieldValue{}, nil, fmt.Errorf("unknown field value kind %d: %w", kind, shdberrors.ErrCorrupt)
	}
}

// Field is a named FieldValue within a Record's data, preserving insertion
// order (Record.Data is an ordered mapping, not a Go map).
type Field struct {
	Name  string
	Value FieldValue
}

// Record is a single version of a keyed tuple.
type Record struct {
	ID          string
	Seqno       uint64
	IsTombstone bool
	Data        []Field
}

// New builds a live record from an ordered field list.
func New(id string, seqno uint64, data []Field) Record {
	return Record{ID: id, Seqno: seqno, Data: data}
}

// NewTombstone builds a tombstone record: empty data, IsTombstone=true.
func NewTombstone(id string, seqno uint64) Record {
	return Record{ID: id, Seqno: seqno, IsTombstone: true}
}

// FromPairs builds a live record from (name, value) pairs.
func FromPairs(id string, seqno uint64, pairs map[string]FieldValue) Record {
	data := make([]Field, 0, len(pairs))
	for name, v := range pairs {
		data = append(data, Field{Name: name, Value: v})
	}
	return New(id, seqno, data)
}

// Get returns the value of the named field and whether it was present.
func (r Record) Get(name string) (FieldValue, bool) {
	for _, f := range r.Data {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// Equal reports structural equality between two records.
func (r Record) Equal(other Record) bool {
	if r.ID != other.ID || r.Seqno != other.Seqno || r.IsTombstone != other.IsTombstone {
		return false
	}
	if len(r.Data) != len(other.Data) {
		return false
	}
	for i := range r.Data {
		if r.Data[i].Name != other.Data[i].Name || !r.Data[i].Value.Equal(other.Data[i].Value) {
			return false
		}
	}
	return true
}

// EncodedSize returns the number of bytes Encode writes for r.
func (r Record) EncodedSize() int {
	// id length-prefix + id bytes + seqno + tombstone flag + field count
	size := 4 + len(r.ID) + 8 + 1 + 4
	for _, f := range r.Data {
		size += 4 + len(f.Name) + f.Value.EncodedSize()
	}
	return size
}

// Encode appends the binary form of r to buf and returns the extended slice.
func (r Record) Encode(buf []byte) []byte {
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(r.ID)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, r.ID...)

	binary.LittleEndian.PutUint64(tmp[:8], r.Seqno)
	buf = append(buf, tmp[:8]...)

	if r.IsTombstone {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(r.Data)))
	buf = append(buf, tmp[:4]...)

	for _, f := range r.Data {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(f.Name)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, f.Name...)
		buf = f.Value.Encode(buf)
	}

	return buf
}

// Decode parses a Record from the front of buf and returns the remaining,
// unconsumed bytes.
func Decode(buf []byte) (Record, []byte, error) {
	if len(buf) < 4 {
		return Record{}, nil, fmt.Errorf("record id length truncated: %w", shdberrors.ErrCorrupt)
	}
	idLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(idLen) {
		return Record{}, nil, fmt.Errorf("record id truncated: %w", shdberrors.ErrCorrupt)
	}
	id := string(buf[:idLen])
	buf = buf[idLen:]

	if len(buf) < 9 {
		return Record{}, nil, fmt.Errorf("record header truncated: %w", shdberrors.ErrCorrupt)
	}
	seqno := binary.LittleEndian.Uint64(buf[:8])
	isTombstone := buf[8] != 0
	buf = buf[9:]

	if len(buf) < 4 {
		return Record{}, nil, fmt.Errorf("record field count truncated: %w", shdberrors.ErrCorrupt)
	}
	numFields := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]

	data := make([]Field, 0, numFields)
	for i := uint32(0); i < numFields; i++ {
		if len(buf) < 4 {
			return Record{}, nil, fmt.Errorf("record field name length truncated: %w", shdberrors.ErrCorrupt)
		}
		nameLen := binary.LittleEndian.Uint32(buf[:4])
		buf = buf[4:]
		if uint64(len(buf)) < uint64(nameLen) {
			return Record{}, nil, fmt.Errorf("record field name truncated: %w", shdberrors.ErrCorrupt)
		}
		name := string(buf[:nameLen])
		buf = buf[nameLen:]

		var val FieldValue
		var err error
		val, buf, err = DecodeFieldValue(buf)
		if err != nil {
			return Record{}, nil, err
		}
		data = append(data, Field{Name: name, Value: val})
	}

	return Record{ID: id, Seqno: seqno, IsTombstone: isTombstone, Data: data}, buf, nil
}

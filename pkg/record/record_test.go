package record

import (
	"errors"
	"math"
	"testing"

	"github.com/nainya/shdb/pkg/shdberrors"
)

func TestFloat64ValueRejectsNaN(t *testing.T) {
	_, err := Float64Value(math.NaN())
	if !errors.Is(err, shdberrors.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	f, err := Float64Value(3.5)
	if err != nil {
		t.Fatalf("Float64Value: %v", err)
	}

	want := New("user-1", 42, []Field{
		{Name: "name", Value: StringValue("ada")},
		{Name: "active", Value: BoolValue(true)},
		{Name: "age", Value: Int64Value(-7)},
		{Name: "views", Value: UInt64Value(9)},
		{Name: "score", Value: f},
		{Name: "note", Value: NullValue()},
	})

	buf := want.Encode(nil)
	if len(buf) != want.EncodedSize() {
		t.Fatalf("EncodedSize mismatch: got %d want %d", want.EncodedSize(), len(buf))
	}

	got, rest, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
	if !got.Equal(want) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestRecordTombstoneHasEmptyData(t *testing.T) {
	tomb := NewTombstone("k", 10)
	if !tomb.IsTombstone {
		t.Fatal("expected IsTombstone=true")
	}
	if len(tomb.Data) != 0 {
		t.Fatalf("expected empty data, got %d fields", len(tomb.Data))
	}

	buf := tomb.Encode(nil)
	got, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(tomb) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, tomb)
	}
}

func TestDecodeTruncatedRecordIsCorrupt(t *testing.T) {
	r := New("k", 1, []Field{{Name: "a", Value: Int64Value(1)}})
	buf := r.Encode(nil)

	_, _, err := Decode(buf[:len(buf)-2])
	if !errors.Is(err, shdberrors.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestFieldValueEquality(t *testing.T) {
	a := Int64Value(5)
	b := Int64Value(5)
	c := Int64Value(6)
	if !a.Equal(b) {
		t.Fatal("expected equal values to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different values to compare unequal")
	}
	if a.Equal(UInt64Value(5)) {
		t.Fatal("expected different kinds to compare unequal even with matching bit pattern")
	}
}

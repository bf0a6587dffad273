package memtable

import (
	"testing"

	"github.com/nainya/shdb/pkg/record"
)

func TestGetReturnsLatestVisibleVersion(t *testing.T) {
	m := New()
	m.Put(record.New("k", 5, []record.Field{{Name: "v", Value: record.StringValue("v1")}}))
	m.Put(record.New("k", 8, []record.Field{{Name: "v", Value: record.StringValue("v2")}}))

	got, ok := m.Get("k", 6)
	if !ok {
		t.Fatal("expected a version at snapshot 6")
	}
	if v, _ := got.Get("v"); mustString(t, v) != "v1" {
		t.Fatalf("expected v1, got %v", v)
	}

	got, ok = m.Get("k", 100)
	if !ok {
		t.Fatal("expected a version at snapshot 100")
	}
	if v, _ := got.Get("v"); mustString(t, v) != "v2" {
		t.Fatalf("expected v2, got %v", v)
	}
}

func TestGetBeforeAnyVersionIsAbsent(t *testing.T) {
	m := New()
	m.Put(record.New("k", 5, nil))
	if _, ok := m.Get("k", 4); ok {
		t.Fatal("expected no version visible before first write")
	}
}

func TestTombstoneSuppressesLowerVersions(t *testing.T) {
	m := New()
	m.Put(record.New("k", 5, nil))
	m.Put(record.NewTombstone("k", 10))

	if _, ok := m.Get("k", 100); ok {
		t.Fatal("expected tombstone to suppress the key")
	}

	r, ok := m.Lookup("k", 100)
	if !ok || !r.IsTombstone {
		t.Fatalf("Lookup should still surface the tombstone version: %+v ok=%v", r, ok)
	}
}

func TestClearResetsState(t *testing.T) {
	m := New()
	m.Put(record.New("k", 1, nil))
	m.Clear()
	if !m.IsEmpty() || m.ApproxSizeBytes() != 0 {
		t.Fatalf("expected empty memtable after Clear, got len=%d size=%d", m.Len(), m.ApproxSizeBytes())
	}
}

func TestIterIsSortedByID(t *testing.T) {
	m := New()
	m.Put(record.New("b", 1, nil))
	m.Put(record.New("a", 2, nil))
	m.Put(record.New("c", 3, nil))

	entries := m.Iter()
	if len(entries) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID > entries[i].ID {
			t.Fatalf("Iter not sorted: %v", entries)
		}
	}
}

func mustString(t *testing.T, v record.FieldValue) string {
	t.Helper()
	s, ok := v.String()
	if !ok {
		t.Fatalf("expected string field value, got kind %v", v.Kind())
	}
	return s
}

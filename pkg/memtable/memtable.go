// Package memtable implements the in-memory, multi-version write buffer
// that absorbs every mutation before it is flushed to a page.
package memtable

import (
	"sort"

	"github.com/nainya/shdb/pkg/record"
)

// perVersionOverhead is a cheap, fixed estimate of the bookkeeping cost of
// storing one record version, used by ApproxSizeBytes alongside the
// record's own field sizes.
const perVersionOverhead = 24

// Memtable is a mapping from id to its ordered sequence of record versions,
// in insertion order. Versions are appended, never rewritten in place.
type Memtable struct {
	data map[string][]record.Record
	size int
}

// New returns an empty Memtable.
func New() *Memtable {
	return &Memtable{data: make(map[string][]record.Record)}
}

// Put appends r as the newest version of its id.
func (m *Memtable) Put(r record.Record) {
	m.data[r.ID] = append(m.data[r.ID], r)
	m.size += len(r.ID) + perVersionOverhead + dataSize(r)
}

func dataSize(r record.Record) int {
	n := 0
	for _, f := range r.Data {
		n += len(f.Name) + f.Value.EncodedSize()
	}
	return n
}

// Get returns the latest version of id with Seqno <= snapshot. The second
// return value is false if no version of id exists at all, or if the
// visible version is a tombstone — both cases mean "not present" to a
// caller, but the memtable reader needs to distinguish "no version" from
// "tombstone" so it can decide whether to fall through to pages; use
// Lookup for that distinction.
func (m *Memtable) Get(id string, snapshot uint64) (record.Record, bool) {
	res, ok := m.Lookup(id, snapshot)
	if !ok || res.IsTombstone {
		return record.Record{}, false
	}
	return res, true
}

// Lookup returns the latest version of id with Seqno <= snapshot, including
// tombstones, and whether such a version exists at all.
func (m *Memtable) Lookup(id string, snapshot uint64) (record.Record, bool) {
	versions, ok := m.data[id]
	if !ok {
		return record.Record{}, false
	}

	found := false
	var best record.Record
	for _, v := range versions {
		if v.Seqno > snapshot {
			continue
		}
		if !found || v.Seqno > best.Seqno {
			best = v
			found = true
		}
	}
	return best, found
}

// ApproxSizeBytes returns a cheap estimate of the memtable's footprint,
// used by the writer to decide when to flush.
func (m *Memtable) ApproxSizeBytes() int {
	return m.size
}

// Len returns the number of distinct ids in the memtable.
func (m *Memtable) Len() int {
	return len(m.data)
}

// IsEmpty reports whether the memtable holds no ids.
func (m *Memtable) IsEmpty() bool {
	return len(m.data) == 0
}

// Clear resets the memtable to empty.
func (m *Memtable) Clear() {
	m.data = make(map[string][]record.Record)
	m.size = 0
}

// IDVersions pairs an id with its ordered version history, as yielded by Iter.
type IDVersions struct {
	ID       string
	Versions []record.Record
}

// Iter returns (id, versions) pairs in ascending id order.
func (m *Memtable) Iter() []IDVersions {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]IDVersions, 0, len(ids))
	for _, id := range ids {
		out = append(out, IDVersions{ID: id, Versions: m.data[id]})
	}
	return out
}

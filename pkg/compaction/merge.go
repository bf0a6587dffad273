// Package compaction implements the k-way merge iterator and the
// L0-to-L1 compaction planner and executor.
package compaction

import (
	"container/heap"

	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/record"
)

// PageIterator walks a single page's records in their on-disk (ascending
// id) order.
type PageIterator struct {
	records []record.Record
	pos     int
}

// NewPageIterator returns an iterator over p's records.
func NewPageIterator(p page.Page) *PageIterator {
	return &PageIterator{records: p.Records}
}

// Peek returns the current record without advancing, and whether the
// iterator is exhausted.
func (it *PageIterator) Peek() (record.Record, bool) {
	if it.pos >= len(it.records) {
		return record.Record{}, false
	}
	return it.records[it.pos], true
}

// Advance moves to the next record.
func (it *PageIterator) Advance() {
	it.pos++
}

// Source tags a PageIterator with the level it was read from, which the
// merge heap uses to break seqno ties (lower level wins).
type Source struct {
	Iter  *PageIterator
	Level int
}

type heapItem struct {
	rec    record.Record
	level  int
	source int
}

// mergeHeap orders items ascending by key, then descending by seqno, then
// ascending by level — i.e. on a key tie the newest (highest-seqno)
// version wins, and on a further tie the lower (more recent) level wins.
type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.rec.ID != b.rec.ID {
		return a.rec.ID < b.rec.ID
	}
	if a.rec.Seqno != b.rec.Seqno {
		return a.rec.Seqno > b.rec.Seqno
	}
	return a.level < b.level
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) {
	*h = append(*h, x.(heapItem))
}

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator performs a k-way merge over a set of PageIterators,
// resolving same-key collisions by largest seqno and dropping tombstones
// from the output stream.
type MergeIterator struct {
	sources []Source
	h       mergeHeap
}

// NewMergeIterator seeds the heap with each source's first record.
func NewMergeIterator(sources []Source) *MergeIterator {
	m := &MergeIterator{sources: sources}
	for i, src := range sources {
		if rec, ok := src.Iter.Peek(); ok {
			m.h = append(m.h, heapItem{rec: rec, level: src.Level, source: i})
		}
	}
	heap.Init(&m.h)
	return m
}

// Next returns the next live record in ascending key order, with at most
// one record per key (the highest seqno not preceded by a tombstone).
// Tombstoned keys are consumed internally and never returned; the second
// return value is false only once the merge is fully exhausted.
func (m *MergeIterator) Next() (record.Record, bool) {
	for m.h.Len() > 0 {
		winner := heap.Pop(&m.h).(heapItem)
		m.advanceSource(winner.source)

		for m.h.Len() > 0 && m.h[0].rec.ID == winner.rec.ID {
			dup := heap.Pop(&m.h).(heapItem)
			m.advanceSource(dup.source)
			if dup.rec.Seqno > winner.rec.Seqno ||
				(dup.rec.Seqno == winner.rec.Seqno && dup.level < winner.level) {
				winner = dup
			}
		}

		if winner.rec.IsTombstone {
			continue
		}
		return winner.rec, true
	}
	return record.Record{}, false
}

// advanceSource moves the named source iterator forward and, if it still
// has records, pushes its next record back onto the heap.
func (m *MergeIterator) advanceSource(sourceIdx int) {
	src := m.sources[sourceIdx]
	src.Iter.Advance()
	if rec, ok := src.Iter.Peek(); ok {
		heap.Push(&m.h, heapItem{rec: rec, level: src.Level, source: sourceIdx})
	}
}

package wal

import "github.com/nainya/shdb/pkg/manifest"

// ComputeCheckpointSeqno returns the highest seqno below which every page in
// every level has already absorbed the corresponding write: the minimum of
// each page's MaxSeqno across the whole tree. WAL entries at or below this
// seqno are redundant with what is already durable in pages and can be
// dropped on the next rewrite. An empty tree has nothing to checkpoint past.
func ComputeCheckpointSeqno(meta manifest.TableMeta) uint64 {
	var (
		min   uint64
		first = true
	)
	for _, level := range meta.Level {
		for _, pm := range level {
			if first || pm.MaxSeqno < min {
				min = pm.MaxSeqno
				first = false
			}
		}
	}
	if first {
		return 0
	}
	return min
}

// MaybeCheckpointWAL recomputes the checkpoint seqno from meta and, if it
// has advanced, rewrites w to drop entries at or below it and records the
// new value in meta. It is a no-op when nothing has advanced, so callers
// can call it unconditionally after every flush and compaction. rewrote
// reports whether a rewrite actually happened, so callers can drive a
// wal_rewrites counter without duplicating the threshold check.
func MaybeCheckpointWAL(w *WAL, meta *manifest.TableMeta) (rewrote bool, err error) {
	next := ComputeCheckpointSeqno(*meta)
	if next <= meta.CheckpointSeqno {
		return false, nil
	}
	if err := w.RewriteTo(next); err != nil {
		return false, err
	}
	meta.CheckpointSeqno = next
	return true, nil
}

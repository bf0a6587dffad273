package wal

import (
	"fmt"

	"github.com/nainya/shdb/pkg/shdberrors"
)

// ReplayResult is the validated, seqno-ordered output of replaying a WAL.
type ReplayResult struct {
	Entries  []Entry
	MaxSeqno uint64
}

// NewReplayResult validates that entries are strictly increasing by Seqno
// and computes the maximum seqno seen.
func NewReplayResult(entries []Entry) (ReplayResult, error) {
	var maxSeqno uint64
	for i, e := range entries {
		if i > 0 && e.Seqno <= entries[i-1].Seqno {
			return ReplayResult{}, fmt.Errorf(
				"wal entries out of order: seqno %d follows seqno %d: %w",
				e.Seqno, entries[i-1].Seqno, shdberrors.ErrCorrupt)
		}
		if e.Seqno > maxSeqno {
			maxSeqno = e.Seqno
		}
	}
	return ReplayResult{Entries: entries, MaxSeqno: maxSeqno}, nil
}

// Replay reads every entry in w and validates seqno ordering.
func Replay(w *WAL) (ReplayResult, error) {
	entries, err := w.ReadAll()
	if err != nil {
		return ReplayResult{}, err
	}
	return NewReplayResult(entries)
}

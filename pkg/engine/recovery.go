package engine

import (
	"time"

	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/wal"
)

// recover reconstructs the memtable and manifest from the WAL and on-disk
// state. It is idempotent: replaying the WAL again after a prior successful
// recovery produces an empty memtable, since every remaining entry is at or
// below the checkpoint already absorbed into pages.
func (e *Engine) recover() error {
	start := time.Now()
	recoveryLog := e.log

	result, err := wal.Replay(e.wal)
	if err != nil {
		recoveryLog.LogRecovery(time.Since(start), 0, e.meta.CheckpointSeqno, err)
		return err
	}

	replayed := 0
	for _, entry := range result.Entries {
		if entry.Seqno <= e.meta.CheckpointSeqno {
			continue
		}
		e.mem.Put(entry.Record)
		replayed++
	}

	if !e.mem.IsEmpty() {
		nextPageID, pages, err := e.flushMemtableToPages()
		if err != nil {
			recoveryLog.LogRecovery(time.Since(start), replayed, e.meta.CheckpointSeqno, err)
			return err
		}

		e.meta.AddPages(0, pages)
		e.meta.CurrentPageID = nextPageID
		e.mem.Clear()

		checkpointStart := time.Now()
		rewrote, err := wal.MaybeCheckpointWAL(e.wal, &e.meta)
		if err != nil {
			recoveryLog.LogRecovery(time.Since(start), replayed, e.meta.CheckpointSeqno, err)
			return err
		}
		if rewrote {
			e.metrics.WalRewrites.Inc()
			e.log.LogCheckpoint(time.Since(checkpointStart), e.meta.CheckpointSeqno, nil)
		}
		if err := e.persistManifest(); err != nil {
			recoveryLog.LogRecovery(time.Since(start), replayed, e.meta.CheckpointSeqno, err)
			return err
		}
	}

	if err := page.SweepTemp(e.dataDir); err != nil {
		recoveryLog.LogRecovery(time.Since(start), replayed, e.meta.CheckpointSeqno, err)
		return err
	}

	// AdvanceTo(n) ensures Current() >= n, so the next Allocate() returns at
	// least n+1: advancing to MaxSeqno guarantees the first post-recovery
	// write is numbered MaxSeqno+1, never colliding with replayed history.
	e.seqAlloc.AdvanceTo(result.MaxSeqno)

	recoveryLog.LogRecovery(time.Since(start), replayed, e.meta.CheckpointSeqno, nil)
	return nil
}

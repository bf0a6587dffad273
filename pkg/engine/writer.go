package engine

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/nainya/shdb/pkg/compaction"
	"github.com/nainya/shdb/pkg/manifest"
	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/record"
	"github.com/nainya/shdb/pkg/wal"
)

// Put allocates a new seqno, durably appends an insert entry to the WAL,
// and inserts the resulting record into the memtable. A failed WAL append
// never reaches the memtable.
func (e *Engine) Put(id string, fields []record.Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	seq := e.seqAlloc.Allocate()
	rec := record.New(id, seq, fields)

	if err := e.appendAndInsertLocked(seq, wal.OpInsert, rec); err != nil {
		e.log.DbLogger("put").LogDbOperation("put", time.Since(start), 0, err)
		return err
	}

	e.log.DbLogger("put").LogDbOperation("put", time.Since(start), 1, nil)
	return e.maybeAutoFlushLocked()
}

// Delete allocates a new seqno, durably appends a tombstone entry, and
// inserts it into the memtable.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	seq := e.seqAlloc.Allocate()
	rec := record.NewTombstone(id, seq)

	if err := e.appendAndInsertLocked(seq, wal.OpDelete, rec); err != nil {
		e.log.DbLogger("delete").LogDbOperation("delete", time.Since(start), 0, err)
		return err
	}

	e.log.DbLogger("delete").LogDbOperation("delete", time.Since(start), 1, nil)
	return e.maybeAutoFlushLocked()
}

func (e *Engine) appendAndInsertLocked(seq uint64, op wal.Op, rec record.Record) error {
	entry := wal.Entry{Seqno: seq, Op: op, RecordID: rec.ID, Record: rec}
	if err := e.wal.Append(entry); err != nil {
		return err
	}
	e.metrics.WalAppends.Inc()

	e.mem.Put(rec)
	e.metrics.Writes.Inc()
	e.metrics.MemtableBytes.Set(float64(e.mem.ApproxSizeBytes()))
	return nil
}

func (e *Engine) maybeAutoFlushLocked() error {
	if e.mem.ApproxSizeBytes() < e.opts.MemtableFlushBytes {
		return nil
	}
	return e.flushLocked()
}

// Flush forces the memtable to disk as new L0 pages, regardless of its
// current size, then checkpoints the WAL and persists the manifest.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.mem.IsEmpty() {
		return nil
	}

	start := time.Now()
	flushLog := e.log

	nextPageID, pages, err := e.flushMemtableToPages()
	if err != nil {
		flushLog.LogFlush(time.Since(start), 0, e.meta.CurrentPageID, err)
		return err
	}

	e.meta.AddPages(0, pages)
	e.meta.CurrentPageID = nextPageID
	e.mem.Clear()
	e.metrics.MemtableBytes.Set(0)

	checkpointStart := time.Now()
	rewrote, err := wal.MaybeCheckpointWAL(e.wal, &e.meta)
	if err != nil {
		return err
	}
	if rewrote {
		e.metrics.WalRewrites.Inc()
		e.log.LogCheckpoint(time.Since(checkpointStart), e.meta.CheckpointSeqno, nil)
	}
	if err := e.persistManifest(); err != nil {
		return err
	}

	e.metrics.Flushes.Inc()
	flushLog.LogFlush(time.Since(start), len(pages), nextPageID, nil)
	return e.maybeCompactLocked()
}

// flushMemtableToPages walks the memtable in id order, cutting pages at
// DefaultMaxPerPageSizeBytes or opts.MaxRecordsPerPage, and writes each finalized page
// under the data directory starting at the current page id.
func (e *Engine) flushMemtableToPages() (uint64, []manifest.PageMeta, error) {
	nextPageID := e.meta.CurrentPageID
	var pages []manifest.PageMeta
	builder := page.NewBuilder()

	flushBuilder := func() error {
		if builder.Len() == 0 {
			return nil
		}
		built, err := builder.Build()
		if err != nil {
			return err
		}
		fileName := compaction.PageFileName(nextPageID)
		size, err := page.WritePage(filepath.Join(e.dataDir, fileName), built)
		if err != nil {
			return err
		}
		pages = append(pages, manifest.PageMeta{
			PageID:     nextPageID,
			FileName:   fileName,
			MinID:      built.Header.MinID,
			MaxID:      built.Header.MaxID,
			NumRecords: built.Header.NumRecords,
			SizeBytes:  size,
			MaxSeqno:   built.Header.PageSeqno,
		})
		nextPageID++
		builder = page.NewBuilder()
		return nil
	}

	for _, iv := range e.mem.Iter() {
		for _, rec := range iv.Versions {
			if builder.Len() > 0 &&
				(builder.EstimateSizeWith(rec) > DefaultMaxPerPageSizeBytes ||
					builder.Len() >= e.opts.MaxRecordsPerPage) {
				if err := flushBuilder(); err != nil {
					return 0, nil, err
				}
			}
			builder.Add(rec)
		}
	}
	if err := flushBuilder(); err != nil {
		return 0, nil, err
	}

	sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageID < pages[j].PageID })
	return nextPageID, pages, nil
}

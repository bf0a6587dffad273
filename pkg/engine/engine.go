// Package engine wires the memtable, write-ahead log, manifest, page
// cache, and compactor into the single-writer embedded key-value store
// described by the storage engine design: put/delete/get against a
// snapshot seqno, explicit flush and compaction, and crash recovery on
// open.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nainya/shdb/internal/logger"
	"github.com/nainya/shdb/internal/metrics"
	"github.com/nainya/shdb/pkg/cache"
	"github.com/nainya/shdb/pkg/compaction"
	"github.com/nainya/shdb/pkg/manifest"
	"github.com/nainya/shdb/pkg/memtable"
	"github.com/nainya/shdb/pkg/seqno"
	"github.com/nainya/shdb/pkg/shdberrors"
	"github.com/nainya/shdb/pkg/wal"
)

const (
	// WalFileName is the append-only log's filename within DataDir.
	WalFileName = "wal.log"

	// ManifestFileName is the serialized TableMeta snapshot's filename.
	ManifestFileName = "meta.json"
)

// Engine is a single-writer, embedded LSM-tree key-value store over one
// exclusively-owned data directory. Every public method except Metrics
// holds the engine's mutex for its whole duration, so concurrent calls are
// serialized rather than run in parallel.
type Engine struct {
	mu sync.Mutex

	dataDir string
	opts    Options

	wal      *wal.WAL
	meta     manifest.TableMeta
	mem      *memtable.Memtable
	cache    *cache.Cache
	seqAlloc *seqno.Allocator

	log     *logger.Logger
	metrics *metrics.Metrics
}

// Open opens (creating if necessary) the engine rooted at dataDir, running
// crash recovery before returning. A zero-value Options behaves exactly as
// the default constants describe.
func Open(dataDir string, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	opts.DataDir = dataDir

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dataDir, shdberrors.ErrIO)
	}

	w, err := wal.Open(filepath.Join(dataDir, WalFileName))
	if err != nil {
		return nil, err
	}

	meta, err := manifest.Load(filepath.Join(dataDir, ManifestFileName))
	if err != nil {
		w.Close()
		return nil, err
	}

	e := &Engine{
		dataDir:  dataDir,
		opts:     opts,
		wal:      w,
		meta:     meta,
		mem:      memtable.New(),
		seqAlloc: seqno.NewAllocator(),
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	e.cache = cache.New(opts.PageCacheCapacity, func(uint64) {
		e.metrics.PageCacheEvictions.Inc()
	})

	if err := e.recover(); err != nil {
		w.Close()
		return nil, err
	}

	return e, nil
}

// Close releases the WAL's file handle. It performs no flush; callers that
// want a clean shutdown call Flush first. A crash-equivalent close (no
// explicit flush) is a supported, recoverable path.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wal.Close()
}

// Metrics returns a point-in-time snapshot of the engine's counters.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) manifestPath() string {
	return filepath.Join(e.dataDir, ManifestFileName)
}

// persistManifest writes the current in-memory manifest to disk and
// refreshes the manifest_pages_total gauge.
func (e *Engine) persistManifest() error {
	if err := e.meta.Persist(e.manifestPath()); err != nil {
		return err
	}
	var total int
	for _, level := range e.meta.Level {
		total += len(level)
	}
	e.metrics.ManifestPagesTotal.Set(float64(total))
	return nil
}

// MaybeCompact runs L0-to-L1 compaction if the current manifest state
// meets either trigger threshold, otherwise it is a no-op.
func (e *Engine) MaybeCompact() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maybeCompactLocked()
}

func (e *Engine) maybeCompactLocked() error {
	start := time.Now()
	compactionLog := e.log.CompactionLogger()

	plan, ok := compaction.PlanL0ToL1(e.meta, compaction.Options{
		L0PagesLimit:          e.opts.L0PagesLimit,
		L0SizeLimitBytes:      e.opts.L0SizeLimitBytes,
		L1TargetPageSizeBytes: e.opts.L1TargetPageSizeBytes,
	})
	if !ok {
		return nil
	}

	nextPageID, outputs, err := compaction.Execute(e.dataDir, plan)
	if err != nil {
		compactionLog.LogCompaction(time.Since(start), len(plan.InputL0Pages)+len(plan.InputL1Pages), 0, err)
		return err
	}

	obsolete := make([]string, 0, len(plan.InputL0Pages)+len(plan.InputL1Pages))
	for _, pm := range plan.InputL0Pages {
		obsolete = append(obsolete, pm.FileName)
	}
	for _, pm := range plan.InputL1Pages {
		obsolete = append(obsolete, pm.FileName)
	}

	overlapping := make(map[string]bool, len(plan.InputL1Pages))
	for _, pm := range plan.InputL1Pages {
		overlapping[pm.FileName] = true
	}

	e.meta.Level[0] = nil
	var keptL1 []manifest.PageMeta
	for _, pm := range e.meta.Level[1] {
		if !overlapping[pm.FileName] {
			keptL1 = append(keptL1, pm)
		}
	}
	e.meta.Level[1] = append(keptL1, outputs...)
	e.meta.CurrentPageID = nextPageID

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

	for _, name := range obsolete {
		_ = os.Remove(filepath.Join(e.dataDir, name))
	}

	e.metrics.Compactions.Inc()
	compactionLog.LogCompaction(time.Since(start), len(obsolete), len(outputs), nil)
	return nil
}

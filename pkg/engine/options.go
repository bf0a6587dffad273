package engine

import (
	"github.com/nainya/shdb/internal/logger"
	"github.com/nainya/shdb/internal/metrics"
)

const (
	// DefaultMaxPerPageSizeBytes is MAX_PER_PAGE_SIZE: the page builder cuts
	// to a new page once the next record would exceed this projected size.
	DefaultMaxPerPageSizeBytes = 32 * 1024

	// DefaultMaxRecordsPerPage is MAX_RECORDS_PER_PAGE: the page builder
	// also cuts after this many records regardless of byte size.
	DefaultMaxRecordsPerPage = 1024

	// DefaultMemtableFlushBytes is the memtable size, by the same
	// approximate accounting as Memtable.ApproxSizeBytes, past which Put
	// and Delete trigger an automatic Flush.
	DefaultMemtableFlushBytes = DefaultMaxPerPageSizeBytes

	// DefaultPageCacheCapacity is the number of pages the LRU page cache
	// holds.
	DefaultPageCacheCapacity = 256

	// DefaultL0PagesLimit is L0_PAGES_LIMIT.
	DefaultL0PagesLimit = 8

	// DefaultL0SizeLimitBytes is L0_SIZE_LIMIT_BYTES.
	DefaultL0SizeLimitBytes = 256 * 1024

	// DefaultL1TargetPageSizeBytes is the target output page size used by
	// L0-to-L1 compaction.
	DefaultL1TargetPageSizeBytes = 256 * 1024
)

// Options configures an Engine. The zero value is not meant to be passed
// directly; Open fills unset fields with the defaults above, so
// engine.Open(dir, engine.Options{}) behaves exactly as spec'd.
type Options struct {
	// DataDir is the directory the engine owns exclusively. Created if
	// missing.
	DataDir string

	// MemtableFlushBytes is the approximate memtable size past which Put
	// and Delete trigger an automatic Flush.
	MemtableFlushBytes int

	// PageCacheCapacity is the number of pages the LRU page cache holds.
	PageCacheCapacity int

	// L0PagesLimit and L0SizeLimitBytes are the two alternative triggers
	// for L0-to-L1 compaction.
	L0PagesLimit     int
	L0SizeLimitBytes int64

	// L1TargetPageSizeBytes is the target output page size for compaction.
	L1TargetPageSizeBytes int

	// MaxRecordsPerPage bounds how many records a single page may hold,
	// independent of its byte size.
	MaxRecordsPerPage int

	// Logger and Metrics are injected so callers running many engines in
	// one process (as tests do) can give each its own. Both default to a
	// fresh instance if nil.
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// withDefaults returns a copy of o with every zero-valued field replaced by
// its default.
func (o Options) withDefaults() Options {
	if o.MemtableFlushBytes <= 0 {
		o.MemtableFlushBytes = DefaultMemtableFlushBytes
	}
	if o.PageCacheCapacity <= 0 {
		o.PageCacheCapacity = DefaultPageCacheCapacity
	}
	if o.L0PagesLimit <= 0 {
		o.L0PagesLimit = DefaultL0PagesLimit
	}
	if o.L0SizeLimitBytes <= 0 {
		o.L0SizeLimitBytes = DefaultL0SizeLimitBytes
	}
	if o.L1TargetPageSizeBytes <= 0 {
		o.L1TargetPageSizeBytes = DefaultL1TargetPageSizeBytes
	}
	if o.MaxRecordsPerPage <= 0 {
		o.MaxRecordsPerPage = DefaultMaxRecordsPerPage
	}
	if o.Logger == nil {
		o.Logger = logger.NewLogger(logger.Config{Level: "info"})
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewMetrics()
	}
	return o
}

package engine

import (
	"path/filepath"

	"github.com/nainya/shdb/pkg/manifest"
	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/record"
)

// MaxSnapshot is the largest representable snapshot seqno; passing it to
// Get yields the latest committed value for a key.
const MaxSnapshot = ^uint64(0)

// Get resolves id as of snapshot, fusing the live memtable with on-disk
// pages under the current manifest. Passing MaxSnapshot yields the latest
// committed value. A missing key, or a key whose latest visible version is
// a tombstone, both report ok=false; Get never fails merely because a key
// is absent.
//
// The memtable is consulted first. Failing that, levels 0..N are walked,
// within each level newest page first (later-appended pages override
// earlier ones at L0; L1+ pages never overlap, so at most one page per
// level can hold id), pruning pages whose [MinID, MaxID] excludes id. The
// first version visible at snapshot wins; if it is a tombstone, search
// stops there rather than falling through to an older, now-suppressed
// version.
func (e *Engine) Get(id string, snapshot uint64) (record.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.Reads.Inc()

	if rec, ok := e.mem.Lookup(id, snapshot); ok {
		if rec.IsTombstone {
			return record.Record{}, false
		}
		return rec, true
	}

	for _, pages := range e.meta.Level {
		for i := len(pages) - 1; i >= 0; i-- {
			pm := pages[i]
			if id < pm.MinID || id > pm.MaxID {
				continue
			}

			p, err := e.loadPage(pm)
			if err != nil {
				// A page that fails to load behaves as if it held no
				// visible version of id: Get never errors on a missing
				// key. The load error is not logged or counted.
				continue
			}

			res := p.Lookup(id, snapshot)
			switch res.Outcome {
			case page.Found:
				if res.Record.IsTombstone {
					return record.Record{}, false
				}
				return res.Record, true
			case page.NotVisible, page.NotFound:
				continue
			}
		}
	}

	return record.Record{}, false
}

// loadPage returns pm's page, consulting the page cache before falling
// back to disk and populating the cache on a miss.
func (e *Engine) loadPage(pm manifest.PageMeta) (page.Page, error) {
	if p, ok := e.cache.Get(pm.PageID); ok {
		e.metrics.PageCacheHits.Inc()
		return p, nil
	}
	e.metrics.PageCacheMisses.Inc()

	p, err := page.ReadPageFromDisk(filepath.Join(e.dataDir, pm.FileName))
	if err != nil {
		return page.Page{}, err
	}
	e.metrics.PagesReadFromDisk.Inc()
	e.cache.Put(pm.PageID, p)
	return p, nil
}

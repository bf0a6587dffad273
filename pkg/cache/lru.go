// Package cache implements a bounded, page-id-keyed LRU over immutable
// on-disk pages. It exists purely as a read optimization: pages never
// change once written, so an eviction can never invalidate data a caller
// is holding.
package cache

import (
	"container/list"
	"sync"

	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/record"
)

type entry struct {
	pageID uint64
	page   page.Page
}

// Cache is a bounded LRU over page.Page values, keyed by page id. Safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[uint64]*list.Element
	onEvict  func(pageID uint64)
}

// New returns a Cache with the given capacity, which must be > 0. onEvict,
// if non-nil, is called synchronously whenever Put evicts an entry (the
// engine uses this to increment the page_cache_evictions counter).
func New(capacity int, onEvict func(pageID uint64)) *Cache {
	if capacity <= 0 {
		panic("cache: capacity must be > 0")
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
		onEvict:  onEvict,
	}
}

// Get returns a copy of the cached page for pageID, promoting it to
// most-recently-used, and whether it was present.
func (c *Cache) Get(pageID uint64) (page.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[pageID]
	if !ok {
		return page.Page{}, false
	}
	c.ll.MoveToFront(el)
	return copyPage(el.Value.(*entry).page), true
}

// Put inserts or refreshes pageID's entry, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *Cache) Put(pageID uint64, p page.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[pageID]; ok {
		el.Value.(*entry).page = p
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{pageID: pageID, page: p})
	c.items[pageID] = el

	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.ll.Back()
	if oldest == nil {
		return
	}
	c.ll.Remove(oldest)
	ev := oldest.Value.(*entry)
	delete(c.items, ev.pageID)
	if c.onEvict != nil {
		c.onEvict(ev.pageID)
	}
}

func copyPage(p page.Page) page.Page {
	out := p
	out.Records = make([]record.Record, len(p.Records))
	copy(out.Records, p.Records)
	return out
}

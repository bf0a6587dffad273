package page

import (
	"sort"

	"github.com/nainya/shdb/pkg/record"
)

// LookupOutcome distinguishes "found a visible version", "id not present in
// this page at all", and "id present but no version is visible at this
// snapshot" — the reader needs the third case to know whether to keep
// searching older pages.
type LookupOutcome int

const (
	NotFound LookupOutcome = iota
	Found
	NotVisible
)

// LookupResult is the outcome of Page.Lookup.
type LookupResult struct {
	Outcome LookupOutcome
	Record  record.Record
}

// Lookup finds the highest-seqno version of id with Seqno <= snapshot within
// this page. Pages are sorted by id, and all versions of a given id are
// therefore contiguous; Lookup scans that run rather than assuming a single
// entry per id.
func (p Page) Lookup(id string, snapshot uint64) LookupResult {
	if id < p.Header.MinID || id > p.Header.MaxID {
		return LookupResult{Outcome: NotFound}
	}

	lo := sort.Search(len(p.Records), func(i int) bool {
		return p.Records[i].ID >= id
	})
	if lo == len(p.Records) || p.Records[lo].ID != id {
		return LookupResult{Outcome: NotFound}
	}

	hi := lo
	for hi < len(p.Records) && p.Records[hi].ID == id {
		hi++
	}

	found := false
	var best record.Record
	for i := lo; i < hi; i++ {
		r := p.Records[i]
		if r.Seqno > snapshot {
			continue
		}
		if !found || r.Seqno > best.Seqno {
			best = r
			found = true
		}
	}

	if !found {
		return LookupResult{Outcome: NotVisible}
	}
	return LookupResult{Outcome: Found, Record: best}
}

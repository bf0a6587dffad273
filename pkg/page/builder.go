package page

import (
	"fmt"
	"sort"

	"github.com/nainya/shdb/pkg/record"
	"github.com/nainya/shdb/pkg/shdberrors"
)

// headerOverheadEstimate seeds Builder's running size estimate so that
// EstimateSizeWith projects a page's on-disk footprint, not just its
// payload, without having to re-encode the header on every call.
const headerOverheadEstimate = 64

// Page is a fully built, immutable sorted run: a header plus its records in
// ascending-id order.
type Page struct {
	Header  Header
	Records []record.Record
}

// Builder accumulates records and finalizes them into a Page.
type Builder struct {
	records  []record.Record
	accBytes int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{accBytes: headerOverheadEstimate}
}

// Add appends a record to the builder.
func (b *Builder) Add(r record.Record) {
	b.records = append(b.records, r)
	b.accBytes += r.EncodedSize()
}

// EstimateSizeWith returns the projected payload size if r were added next,
// without mutating the builder.
func (b *Builder) EstimateSizeWith(r record.Record) int {
	return b.accBytes + r.EncodedSize()
}

// Len returns the number of records accumulated so far.
func (b *Builder) Len() int {
	return len(b.records)
}

// Build finalizes the accumulated records into a Page. Fails with ErrEmpty
// if no records were added. Records are sorted ascending by id, stably
// preserving input order on ties.
func (b *Builder) Build() (Page, error) {
	if len(b.records) == 0 {
		return Page{}, fmt.Errorf("build page with no records: %w", shdberrors.ErrEmpty)
	}

	sort.SliceStable(b.records, func(i, j int) bool {
		return b.records[i].ID < b.records[j].ID
	})

	minID := b.records[0].ID
	maxID := b.records[0].ID
	var maxSeqno uint64
	payload := make([]byte, 0, b.accBytes)

	for _, r := range b.records {
		if r.ID < minID {
			minID = r.ID
		}
		if r.ID > maxID {
			maxID = r.ID
		}
		if r.Seqno > maxSeqno {
			maxSeqno = r.Seqno
		}
		payload = r.Encode(payload)
	}

	header := Header{
		Magic:      Magic,
		Version:    Version,
		Checksum:   ComputeChecksum(payload),
		MinID:      minID,
		MaxID:      maxID,
		NumRecords: uint32(len(b.records)),
		PageSeqno:  maxSeqno,
	}

	return Page{Header: header, Records: b.records}, nil
}

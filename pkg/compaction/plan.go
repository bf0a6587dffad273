package compaction

import "github.com/nainya/shdb/pkg/manifest"

const (
	// DefaultL0PagesLimit is the L0 page count that triggers compaction.
	DefaultL0PagesLimit = 8

	// DefaultL0SizeLimitBytes is the L0 total byte size that triggers
	// compaction.
	DefaultL0SizeLimitBytes = 256 * 1024

	// DefaultL1TargetPageSizeBytes is the target output page size for
	// L0-to-L1 compaction.
	DefaultL1TargetPageSizeBytes = 256 * 1024
)

// Plan describes an L0-to-L1 compaction to run.
type Plan struct {
	SourceLevel         int
	TargetLevel         int
	InputL0Pages        []manifest.PageMeta
	InputL1Pages        []manifest.PageMeta
	MinKey              string
	MaxKey              string
	TargetPageSizeBytes int
	TargetPageIDStart   uint64
}

// Options configures the compaction trigger thresholds. The zero value is
// not ready for use; callers use DefaultOptions() or override individual
// fields.
type Options struct {
	L0PagesLimit        int
	L0SizeLimitBytes    int64
	L1TargetPageSizeBytes int
}

// DefaultOptions returns the thresholds named in the component design.
func DefaultOptions() Options {
	return Options{
		L0PagesLimit:          DefaultL0PagesLimit,
		L0SizeLimitBytes:      DefaultL0SizeLimitBytes,
		L1TargetPageSizeBytes: DefaultL1TargetPageSizeBytes,
	}
}

// PlanL0ToL1 produces a compaction plan when L0 has reached either trigger
// threshold, or reports ok=false when compaction is not yet warranted.
func PlanL0ToL1(meta manifest.TableMeta, opts Options) (Plan, bool) {
	l0 := meta.Level[0]
	if len(l0) == 0 {
		return Plan{}, false
	}

	var totalBytes int64
	minKey, maxKey := l0[0].MinID, l0[0].MaxID
	for _, p := range l0 {
		totalBytes += p.SizeBytes
		if p.MinID < minKey {
			minKey = p.MinID
		}
		if p.MaxID > maxKey {
			maxKey = p.MaxID
		}
	}

	if len(l0) < opts.L0PagesLimit && totalBytes < opts.L0SizeLimitBytes {
		return Plan{}, false
	}

	var l1Inputs []manifest.PageMeta
	boundary := manifest.PageMeta{MinID: minKey, MaxID: maxKey}
	for _, p := range meta.Level[1] {
		if p.Overlaps(boundary) {
			l1Inputs = append(l1Inputs, p)
		}
	}

	return Plan{
		SourceLevel:           0,
		TargetLevel:           1,
		InputL0Pages:          append([]manifest.PageMeta(nil), l0...),
		InputL1Pages:          l1Inputs,
		MinKey:                minKey,
		MaxKey:                maxKey,
		TargetPageSizeBytes:   opts.L1TargetPageSizeBytes,
		TargetPageIDStart:     meta.CurrentPageID,
	}, true
}

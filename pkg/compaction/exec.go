package compaction

import (
	"fmt"
	"path/filepath"

	"github.com/nainya/shdb/pkg/manifest"
	"github.com/nainya/shdb/pkg/page"
)

// PageFileName returns the canonical on-disk filename for a page id.
func PageFileName(pageID uint64) string {
	return fmt.Sprintf("page_%d.db", pageID)
}

// Execute runs the merge over plan's input pages and writes the merged,
// non-overlapping output pages to dataDir, cutting to a new page whenever
// the next record would exceed plan.TargetPageSizeBytes. It returns the
// next page id to allocate and the PageMeta for every output page.
func Execute(dataDir string, plan Plan) (uint64, []manifest.PageMeta, error) {
	var sources []Source

	for _, pm := range plan.InputL0Pages {
		p, err := page.ReadPageFromDisk(filepath.Join(dataDir, pm.FileName))
		if err != nil {
			return 0, nil, fmt.Errorf("read L0 input %q: %w", pm.FileName, err)
		}
		sources = append(sources, Source{Iter: NewPageIterator(p), Level: 0})
	}
	for _, pm := range plan.InputL1Pages {
		p, err := page.ReadPageFromDisk(filepath.Join(dataDir, pm.FileName))
		if err != nil {
			return 0, nil, fmt.Errorf("read L1 input %q: %w", pm.FileName, err)
		}
		sources = append(sources, Source{Iter: NewPageIterator(p), Level: 1})
	}

	merged := NewMergeIterator(sources)

	nextPageID := plan.TargetPageIDStart
	var outputs []manifest.PageMeta
	builder := page.NewBuilder()

	flush := func() error {
		if builder.Len() == 0 {
			return nil
		}
		built, err := builder.Build()
		if err != nil {
			return err
		}
		fileName := PageFileName(nextPageID)
		size, err := page.WritePage(filepath.Join(dataDir, fileName), built)
		if err != nil {
			return err
		}
		outputs = append(outputs, manifest.PageMeta{
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

	for {
		rec, ok := merged.Next()
		if !ok {
			break
		}
		if builder.Len() > 0 && builder.EstimateSizeWith(rec) > plan.TargetPageSizeBytes {
			if err := flush(); err != nil {
				return 0, nil, err
			}
		}
		builder.Add(rec)
	}

	if err := flush(); err != nil {
		return 0, nil, err
	}

	return nextPageID, outputs, nil
}

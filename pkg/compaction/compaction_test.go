package compaction

import (
	"path/filepath"
	"testing"

	"github.com/nainya/shdb/pkg/manifest"
	"github.com/nainya/shdb/pkg/page"
	"github.com/nainya/shdb/pkg/record"
)

func buildAndWrite(t *testing.T, dir, fileName string, records ...record.Record) manifest.PageMeta {
	t.Helper()
	b := page.NewBuilder()
	for _, r := range records {
		b.Add(r)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	size, err := page.WritePage(filepath.Join(dir, fileName), p)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	return manifest.PageMeta{
		FileName:   fileName,
		MinID:      p.Header.MinID,
		MaxID:      p.Header.MaxID,
		NumRecords: p.Header.NumRecords,
		SizeBytes:  size,
		MaxSeqno:   p.Header.PageSeqno,
	}
}

func TestMergeIteratorLatestSeqnoWinsAndDropsTombstones(t *testing.T) {
	dir := t.TempDir()

	pm0 := buildAndWrite(t, dir, "page_0.db",
		record.New("a", 1, []record.Field{{Name: "v", Value: record.StringValue("old-a")}}),
		record.New("b", 2, []record.Field{{Name: "v", Value: record.StringValue("b")}}),
	)
	pm1 := buildAndWrite(t, dir, "page_1.db",
		record.New("a", 5, []record.Field{{Name: "v", Value: record.StringValue("new-a")}}),
		record.NewTombstone("c", 6),
	)

	p0, err := page.ReadPageFromDisk(filepath.Join(dir, pm0.FileName))
	if err != nil {
		t.Fatalf("read page0: %v", err)
	}
	p1, err := page.ReadPageFromDisk(filepath.Join(dir, pm1.FileName))
	if err != nil {
		t.Fatalf("read page1: %v", err)
	}

	merged := NewMergeIterator([]Source{
		{Iter: NewPageIterator(p0), Level: 0},
		{Iter: NewPageIterator(p1), Level: 0},
	})

	var got []record.Record
	for {
		r, ok := merged.Next()
		if !ok {
			break
		}
		got = append(got, r)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 live records (c dropped as tombstone), got %d: %+v", len(got), got)
	}
	if got[0].ID != "a" || got[0].Seqno != 5 {
		t.Fatalf("expected a@5 to win, got %+v", got[0])
	}
	if got[1].ID != "b" {
		t.Fatalf("expected b second, got %+v", got[1])
	}
}

func TestPlanL0ToL1TriggersOnPageCount(t *testing.T) {
	meta := manifest.NewDefault()
	for i := 0; i < DefaultL0PagesLimit; i++ {
		meta.Level[0] = append(meta.Level[0], manifest.PageMeta{MinID: "a", MaxID: "z", SizeBytes: 10})
	}

	plan, ok := PlanL0ToL1(meta, DefaultOptions())
	if !ok {
		t.Fatal("expected a plan once L0 page count hits the limit")
	}
	if len(plan.InputL0Pages) != DefaultL0PagesLimit {
		t.Fatalf("expected all L0 pages as input, got %d", len(plan.InputL0Pages))
	}
}

func TestPlanL0ToL1NoTriggerBelowThresholds(t *testing.T) {
	meta := manifest.NewDefault()
	meta.Level[0] = append(meta.Level[0], manifest.PageMeta{MinID: "a", MaxID: "b", SizeBytes: 10})

	if _, ok := PlanL0ToL1(meta, DefaultOptions()); ok {
		t.Fatal("expected no plan below both thresholds")
	}
}

func TestExecuteProducesNonOverlappingOutputs(t *testing.T) {
	dir := t.TempDir()

	var l0 []manifest.PageMeta
	l0 = append(l0, buildAndWrite(t, dir, "page_0.db", record.New("a", 1, nil), record.New("c", 2, nil)))
	l0 = append(l0, buildAndWrite(t, dir, "page_1.db", record.New("b", 3, nil), record.New("d", 4, nil)))

	meta := manifest.NewDefault()
	meta.Level[0] = l0
	meta.CurrentPageID = 2

	plan, ok := PlanL0ToL1(meta, Options{L0PagesLimit: 1, L0SizeLimitBytes: 1, L1TargetPageSizeBytes: DefaultL1TargetPageSizeBytes})
	if !ok {
		t.Fatal("expected a plan")
	}

	nextID, outputs, err := Execute(dir, plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if nextID != 3 {
		t.Fatalf("expected next page id 3, got %d", nextID)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected a single merged output page, got %d", len(outputs))
	}
	if outputs[0].NumRecords != 4 {
		t.Fatalf("expected 4 merged records, got %d", outputs[0].NumRecords)
	}
}

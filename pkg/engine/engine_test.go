package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nainya/shdb/pkg/record"
)

func strField(name, v string) record.Field {
	return record.Field{Name: name, Value: record.StringValue(v)}
}

func mustOpen(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

// Scenario 1: WAL append and replay across a flush and reopen.
func TestPutOverwriteFlushReopen(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)

	if err := e.Put("1", []record.Field{strField("val", "a")}); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := e.Put("1", []record.Field{strField("val", "b")}); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := mustOpen(t, dir)
	defer e2.Close()

	rec, ok := e2.Get("1", MaxSnapshot)
	if !ok {
		t.Fatal("expected key \"1\" to resolve after reopen")
	}
	v, _ := rec.Get("val")
	got, _ := v.String()
	if got != "b" {
		t.Fatalf("expected val=b, got %q", got)
	}
}

// Scenario 2: tombstone semantics across snapshots, surviving a flush. The
// single resulting L0 page is below both compaction triggers, so the
// MaybeCompact call leaves it in place.
func TestTombstoneSemanticsAcrossSnapshots(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	defer e.Close()

	if err := e.Put("k", []record.Field{strField("v", "v1")}); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	seq1 := e.seqAlloc.Current()

	if err := e.Put("k", []record.Field{strField("v", "v2")}); err != nil {
		t.Fatalf("put v2: %v", err)
	}
	seq2 := e.seqAlloc.Current()

	if err := e.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.MaybeCompact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	rec, ok := e.Get("k", seq1)
	if !ok {
		t.Fatalf("expected k visible at seq1=%d", seq1)
	}
	v, _ := rec.Get("v")
	if s, _ := v.String(); s != "v1" {
		t.Fatalf("expected v1 at seq1, got %q", s)
	}

	rec, ok = e.Get("k", seq2)
	if !ok {
		t.Fatalf("expected k visible at seq2=%d", seq2)
	}
	v, _ = rec.Get("v")
	if s, _ := v.String(); s != "v2" {
		t.Fatalf("expected v2 at seq2, got %q", s)
	}

	if _, ok := e.Get("k", MaxSnapshot); ok {
		t.Fatal("expected k to be deleted at MaxSnapshot")
	}
}

// Scenario 3: persist many entries, flush, and reopen; every key resolves
// and the manifest matches what is on disk.
func TestPersistManyEntriesAndReopen(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)

	const n = 1000
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%04d", i)
		if err := e.Put(id, []record.Field{strField("v", fmt.Sprintf("val-%d", i))}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(e.meta.Level[0]) == 0 {
		t.Fatal("expected at least one L0 page after flush")
	}
	for _, pm := range e.meta.Level[0] {
		if _, err := os.Stat(filepath.Join(dir, pm.FileName)); err != nil {
			t.Fatalf("page file listed in manifest is missing: %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := mustOpen(t, dir)
	defer e2.Close()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%04d", i)
		rec, ok := e2.Get(id, MaxSnapshot)
		if !ok {
			t.Fatalf("expected %s to resolve after reopen", id)
		}
		v, _ := rec.Get("v")
		want := fmt.Sprintf("val-%d", i)
		if got, _ := v.String(); got != want {
			t.Fatalf("id %s: expected %q, got %q", id, want, got)
		}
	}
}

// Scenario 4: enough writes to force L0 past its compaction trigger; after
// MaybeCompact, L0 is empty, L1 is non-empty, and no two L1 pages overlap.
func TestCompactionDrainsL0IntoNonOverlappingL1(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	defer e.Close()

	const n = 6000
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%05d", i)
		if err := e.Put(id, []record.Field{strField("v", fmt.Sprintf("val-%d", i))}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.MaybeCompact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	if len(e.meta.Level[0]) != 0 {
		t.Fatalf("expected L0 drained, got %d pages", len(e.meta.Level[0]))
	}
	if len(e.meta.Level[1]) == 0 {
		t.Fatal("expected L1 to gain pages from compaction")
	}
	for i := range e.meta.Level[1] {
		for j := range e.meta.Level[1] {
			if i == j {
				continue
			}
			if e.meta.Level[1][i].Overlaps(e.meta.Level[1][j]) {
				t.Fatalf("L1 pages %d and %d overlap", i, j)
			}
		}
	}
	if e.Metrics().Compactions == 0 {
		t.Fatal("expected at least one compaction recorded in metrics")
	}

	for i := 0; i < n; i += 137 {
		id := fmt.Sprintf("%05d", i)
		if _, ok := e.Get(id, MaxSnapshot); !ok {
			t.Fatalf("expected %s to survive compaction", id)
		}
	}
}

// Scenario 5: checkpoint advances across flush+compaction and every prior
// key still resolves after a crash-equivalent reopen (no explicit Close).
func TestCheckpointSafetyAcrossCrash(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)

	const n = 2000
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%05d", i)
		if err := e.Put(id, []record.Field{strField("v", fmt.Sprintf("val-%d", i))}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.MaybeCompact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	checkpoint := e.meta.CheckpointSeqno
	// Deliberately skip Close to simulate a crash immediately after the
	// last successful operation: no WAL flush beyond what Append already
	// guaranteed, no final manifest write beyond what Flush/MaybeCompact
	// already persisted.

	e2 := mustOpen(t, dir)
	defer e2.Close()

	if e2.meta.CheckpointSeqno < checkpoint {
		t.Fatalf("expected checkpoint seqno >= %d after reopen, got %d", checkpoint, e2.meta.CheckpointSeqno)
	}
	for i := 0; i < n; i += 97 {
		id := fmt.Sprintf("%05d", i)
		rec, ok := e2.Get(id, MaxSnapshot)
		if !ok {
			t.Fatalf("expected %s to resolve after crash-equivalent reopen", id)
		}
		v, _ := rec.Get("v")
		want := fmt.Sprintf("val-%d", i)
		if got, _ := v.String(); got != want {
			t.Fatalf("id %s: expected %q, got %q", id, want, got)
		}
	}
}

// Recovery is idempotent: running it again on an already-recovered
// directory changes nothing observable.
func TestRecoverIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)

	if err := e.Put("a", []record.Field{strField("v", "1")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := mustOpen(t, dir)
	checkpointAfterFirst := e2.meta.CheckpointSeqno
	if err := e2.Close(); err != nil {
		t.Fatalf("close e2: %v", err)
	}

	e3 := mustOpen(t, dir)
	defer e3.Close()
	if e3.meta.CheckpointSeqno != checkpointAfterFirst {
		t.Fatalf("expected stable checkpoint seqno across idempotent recovery, got %d vs %d",
			e3.meta.CheckpointSeqno, checkpointAfterFirst)
	}
	if !e3.mem.IsEmpty() {
		t.Fatal("expected empty memtable after a second, idempotent recovery")
	}
	rec, ok := e3.Get("a", MaxSnapshot)
	if !ok {
		t.Fatal("expected a to still resolve")
	}
	if v, _ := rec.Get("v"); func() string { s, _ := v.String(); return s }() != "1" {
		t.Fatal("expected a's value to survive repeated recovery")
	}
}

// MaybeCompact is a no-op when no trigger threshold has been met.
func TestMaybeCompactNoOpWithoutTrigger(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	defer e.Close()

	if err := e.Put("a", []record.Field{strField("v", "1")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	before := e.Metrics().Compactions
	if err := e.MaybeCompact(); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if e.Metrics().Compactions != before {
		t.Fatal("expected no compaction below the L0 trigger")
	}
}

// Get on a key that was never written returns "not present", never an error.
func TestGetMissingKeyIsNotPresent(t *testing.T) {
	dir := t.TempDir()
	e := mustOpen(t, dir)
	defer e.Close()

	if _, ok := e.Get("missing", MaxSnapshot); ok {
		t.Fatal("expected missing key to report not-present")
	}
}

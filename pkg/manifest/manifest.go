// Package manifest implements TableMeta, the durable record of which pages
// exist at which level, the WAL checkpoint seqno, and the next page id to
// allocate.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	natomic "github.com/natefinch/atomic"

	"github.com/nainya/shdb/pkg/shdberrors"
)

// CurrentVersion is the manifest format version written by this build.
const CurrentVersion = 1

// numLevels is the number of levels this engine maintains: L0 (overlapping)
// and L1 (non-overlapping). The spec does not call for L2+, so the manifest
// carries exactly two.
const numLevels = 2

// PageMeta is the manifest's per-page record.
type PageMeta struct {
	PageID     uint64 `json:"page_id"`
	FileName   string `json:"file_name"`
	MinID      string `json:"min_id"`
	MaxID      string `json:"max_id"`
	NumRecords uint32 `json:"num_records"`
	SizeBytes  int64  `json:"size_bytes"`
	MaxSeqno   uint64 `json:"max_seqno"`
}

// Overlaps reports whether the id ranges [p.MinID, p.MaxID] and
// [other.MinID, other.MaxID] intersect.
func (p PageMeta) Overlaps(other PageMeta) bool {
	return !(p.MaxID < other.MinID || p.MinID > other.MaxID)
}

// TableMeta is the full manifest: the durable list of pages per level, the
// WAL checkpoint seqno, and the page-id allocator state.
type TableMeta struct {
	Version         int          `json:"version"`
	Level           [][]PageMeta `json:"level"`
	CheckpointSeqno uint64       `json:"checkpoint_seqno"`
	CurrentPageID   uint64       `json:"current_page_id"`
}

// NewDefault returns the default empty manifest: version 1, two empty
// levels, checkpoint_seqno 0, current_page_id 0.
func NewDefault() TableMeta {
	return TableMeta{
		Version: CurrentVersion,
		Level:   make([][]PageMeta, numLevels),
	}
}

// Load reads the manifest at path, or returns NewDefault() if the file does
// not exist.
func Load(path string) (TableMeta, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return TableMeta{}, fmt.Errorf("read manifest %q: %w", path, shdberrors.ErrIO)
	}

	var m TableMeta
	if err := json.Unmarshal(buf, &m); err != nil {
		return TableMeta{}, fmt.Errorf("parse manifest %q: %w", path, shdberrors.ErrCorrupt)
	}
	for len(m.Level) < numLevels {
		m.Level = append(m.Level, nil)
	}
	return m, nil
}

// Persist writes m to path atomically: temp file in the same directory,
// fsync, rename over path, then fsync the containing directory.
func (m TableMeta) Persist(path string) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := natomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("write manifest %q: %w", path, shdberrors.ErrIO)
	}

	return fsyncDir(filepath.Dir(path))
}

// AddPages appends pages to the given level (the engine uses it to extend
// L0 with newly flushed pages).
func (m *TableMeta) AddPages(level int, pages []PageMeta) {
	m.Level[level] = append(m.Level[level], pages...)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer f.Close()
	_ = f.Sync()
	return nil
}

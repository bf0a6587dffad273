package page

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	natomic "github.com/natefinch/atomic"

	"github.com/nainya/shdb/pkg/record"
	"github.com/nainya/shdb/pkg/shdberrors"
)

// tempSuffix names the intermediate file WritePage stages its output in
// before renaming it over the final page path. A crash between the two
// steps leaves a "*.temp.new" file that SweepTemp finds and removes on the
// next recovery.
const tempSuffix = ".temp.new"

// WritePage serializes page and writes it to path atomically: it writes the
// header and payload to path+".temp.new" in the same directory, then
// renames it over path and fsyncs the containing directory. Fails with
// ErrAlreadyExists if path already exists, since pages are write-once.
func WritePage(path string, p Page) (int64, error) {
	if _, err := os.Stat(path); err == nil {
		return 0, fmt.Errorf("page file %q already exists: %w", path, shdberrors.ErrAlreadyExists)
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("stat %q: %w", path, err)
	}

	payload := make([]byte, 0, p.Header.NumRecords*32)
	for _, r := range p.Records {
		payload = r.Encode(payload)
	}

	buf := append(p.Header.Encode(), payload...)

	tempPath := path + tempSuffix
	if err := natomic.WriteFile(tempPath, bytes.NewReader(buf)); err != nil {
		return 0, fmt.Errorf("write page temp file %q: %w", tempPath, shdberrors.ErrIO)
	}

	if err := natomic.ReplaceFile(tempPath, path); err != nil {
		return 0, fmt.Errorf("rename %q over %q: %w", tempPath, path, shdberrors.ErrIO)
	}

	if err := fsyncDir(filepath.Dir(path)); err != nil {
		return 0, err
	}

	return int64(len(buf)), nil
}

// ReadPageFromDisk reads, parses, and validates the page file at path.
func ReadPageFromDisk(path string) (Page, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read page %q: %w", path, shdberrors.ErrIO)
	}
	return ReadPage(buf)
}

// ReadPage parses and validates a page from its raw file bytes.
func ReadPage(buf []byte) (Page, error) {
	header, payload, err := DecodeHeader(buf)
	if err != nil {
		return Page{}, err
	}
	if err := header.Validate(); err != nil {
		return Page{}, err
	}

	computed := ComputeChecksum(payload)
	if computed != header.Checksum {
		return Page{}, fmt.Errorf("page checksum mismatch: got %#x want %#x: %w", computed, header.Checksum, shdberrors.ErrCorrupt)
	}

	records := make([]record.Record, 0, header.NumRecords)
	rest := payload
	for i := uint32(0); i < header.NumRecords; i++ {
		var r record.Record
		r, rest, err = record.Decode(rest)
		if err != nil {
			return Page{}, err
		}
		records = append(records, r)
	}

	if uint32(len(records)) != header.NumRecords {
		return Page{}, fmt.Errorf("page record count mismatch: got %d want %d: %w", len(records), header.NumRecords, shdberrors.ErrCorrupt)
	}

	return Page{Header: header, Records: records}, nil
}

// fsyncDir fsyncs a directory so a prior rename into it is durable. A
// failure to open or sync the directory is ignored without logging and
// never returned; the rename itself has already landed.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer f.Close()
	_ = f.Sync()
	return nil
}

// SweepTemp removes stale "*.new" files left behind by an interrupted page
// write (path+".temp.new"). The WAL rewrite staging file
// (wal.RewriteFileName) does not end in ".new" and is left in place; the
// next WAL rewrite overwrites it. Recovery calls this on engine open.
func SweepTemp(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dir %q: %w", dir, shdberrors.ErrIO)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if hasSuffix(name, ".new") {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

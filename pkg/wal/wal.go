package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	natomic "github.com/natefinch/atomic"

	"github.com/nainya/shdb/pkg/shdberrors"
)

// RewriteFileName is the transient file RewriteTo stages its output in
// before renaming it over the live log.
const RewriteFileName = "wal.rewrite_wal"

// WAL is a single append-only log file of length-framed entries.
type WAL struct {
	path string
	fd   *os.File
	mu   sync.Mutex

	closed bool
}

// Open opens path for append+read, creating it if it does not exist.
func Open(path string) (*WAL, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal %q: %w", path, shdberrors.ErrIO)
	}
	return &WAL{path: path, fd: fd}, nil
}

// Path returns the WAL's file path.
func (w *WAL) Path() string {
	return w.path
}

// Append frames and durably writes entry: on successful return it survives
// a crash immediately after.
func (w *WAL) Append(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	payload := entry.Encode()
	frame := make([]byte, 0, 8+len(payload)+8)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, payload...)
	frame = append(frame, lenBuf[:]...)

	if _, err := w.fd.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek wal %q: %w", w.path, shdberrors.ErrIO)
	}
	if _, err := w.fd.Write(frame); err != nil {
		return fmt.Errorf("write wal %q: %w", w.path, shdberrors.ErrIO)
	}
	if err := w.fd.Sync(); err != nil {
		return fmt.Errorf("fsync wal %q: %w", w.path, shdberrors.ErrIO)
	}
	return nil
}

// ReadAll seeks to the start of the log and reads every framed entry
// sequentially. A torn tail — fewer than 8 bytes for a length header, a
// short payload, or a mismatched trailing length — yields a clean end of
// the well-formed prefix: no error, no entry produced for the torn frame.
func (w *WAL) ReadAll() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.fd.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek wal %q: %w", w.path, shdberrors.ErrIO)
	}

	var entries []Entry
	for {
		frame, ok, err := readFrame(w.fd)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		entry, err := DecodeEntry(frame)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// readFrame reads one [len][payload][len] frame from r, returning
// ok=false (no error) when the remaining bytes don't form a complete,
// consistent frame.
func readFrame(r *os.File) ([]byte, bool, error) {
	var lenBuf [8]byte
	n, err := readFull(r, lenBuf[:])
	if err != nil {
		return nil, false, fmt.Errorf("read wal length header: %w", shdberrors.ErrIO)
	}
	if n < 8 {
		return nil, false, nil
	}
	payloadLen := binary.LittleEndian.Uint64(lenBuf[:])

	payload := make([]byte, payloadLen)
	n, err = readFull(r, payload)
	if err != nil {
		return nil, false, fmt.Errorf("read wal payload: %w", shdberrors.ErrIO)
	}
	if uint64(n) < payloadLen {
		return nil, false, nil
	}

	var trailerBuf [8]byte
	n, err = readFull(r, trailerBuf[:])
	if err != nil {
		return nil, false, fmt.Errorf("read wal trailing length: %w", shdberrors.ErrIO)
	}
	if n < 8 {
		return nil, false, nil
	}
	trailerLen := binary.LittleEndian.Uint64(trailerBuf[:])
	if trailerLen != payloadLen {
		return nil, false, nil
	}

	return payload, true, nil
}

// readFull reads into buf until it is full or the file is exhausted,
// returning the number of bytes actually read (which may be less than
// len(buf) at EOF, unlike io.ReadFull's error-on-short-read behavior —
// WAL recovery needs to tell a clean EOF apart from a real I/O failure).
func readFull(r *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// RewriteTo copies every entry with Seqno > checkpoint from the live log
// into a temporary file, preserving frame bytes exactly, then atomically
// replaces the live log with it. If a frame is internally inconsistent
// mid-scan, it fails with ErrCorrupt rather than silently truncating —
// unlike ReadAll, a torn tail here must not be dropped, since it might
// still hold a valid, unreplayed entry.
func (w *WAL) RewriteTo(checkpoint uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if _, err := w.fd.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal %q: %w", w.path, shdberrors.ErrIO)
	}

	var kept []byte
	for {
		var lenBuf [8]byte
		n, err := readFull(w.fd, lenBuf[:])
		if err != nil {
			return fmt.Errorf("read wal length header: %w", shdberrors.ErrIO)
		}
		if n == 0 {
			break
		}
		if n < 8 {
			return fmt.Errorf("wal rewrite found a torn length header: %w", shdberrors.ErrCorrupt)
		}
		payloadLen := binary.LittleEndian.Uint64(lenBuf[:])

		payload := make([]byte, payloadLen)
		n, err = readFull(w.fd, payload)
		if err != nil {
			return fmt.Errorf("read wal payload: %w", shdberrors.ErrIO)
		}
		if uint64(n) < payloadLen {
			return fmt.Errorf("wal rewrite found a torn payload: %w", shdberrors.ErrCorrupt)
		}

		var trailerBuf [8]byte
		n, err = readFull(w.fd, trailerBuf[:])
		if err != nil {
			return fmt.Errorf("read wal trailing length: %w", shdberrors.ErrIO)
		}
		if n < 8 {
			return fmt.Errorf("wal rewrite found a torn trailing length: %w", shdberrors.ErrCorrupt)
		}
		trailerLen := binary.LittleEndian.Uint64(trailerBuf[:])
		if trailerLen != payloadLen {
			return fmt.Errorf("wal rewrite frame length mismatch: %w", shdberrors.ErrCorrupt)
		}

		entry, err := DecodeEntry(payload)
		if err != nil {
			return err
		}

		if entry.Seqno > checkpoint {
			kept = append(kept, lenBuf[:]...)
			kept = append(kept, payload...)
			kept = append(kept, trailerBuf[:]...)
		}
	}

	dir := filepath.Dir(w.path)
	rewritePath := filepath.Join(dir, RewriteFileName)

	if err := natomic.WriteFile(rewritePath, bytes.NewReader(kept)); err != nil {
		return fmt.Errorf("write %q: %w", rewritePath, shdberrors.ErrIO)
	}

	if err := w.fd.Close(); err != nil {
		return fmt.Errorf("close wal %q: %w", w.path, shdberrors.ErrIO)
	}

	if err := natomic.ReplaceFile(rewritePath, w.path); err != nil {
		return fmt.Errorf("rename %q over %q: %w", rewritePath, w.path, shdberrors.ErrIO)
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}

	fd, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("reopen wal %q: %w", w.path, shdberrors.ErrIO)
	}
	w.fd = fd

	return nil
}

// Close closes the underlying file handle. It does not flush any buffered
// state, since Append is already fsync-on-return.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fd.Close()
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

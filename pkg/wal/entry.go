package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/nainya/shdb/pkg/record"
	"github.com/nainya/shdb/pkg/shdberrors"
)

// Op names the kind of mutation a WalEntry records.
type Op byte

const (
	OpInsert Op = 1
	OpUpdate Op = 2
	OpDelete Op = 3
)

// Entry is the payload framed by the WAL: a single mutation, durably
// ordered by Seqno. Delete entries carry a tombstone Record rather than a
// nil one, so replay can reinsert it into the memtable uniformly.
type Entry struct {
	Seqno    uint64
	Op       Op
	Table    string
	RecordID string
	Record   record.Record
}

// EncodedSize returns the number of bytes Encode writes for e (excluding
// the surrounding length frame).
func (e Entry) EncodedSize() int {
	return 8 + 1 + 4 + len(e.Table) + 4 + len(e.RecordID) + e.Record.EncodedSize()
}

// Encode serializes e's payload (not the surrounding frame).
func (e Entry) Encode() []byte {
	buf := make([]byte, 0, e.EncodedSize())
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:8], e.Seqno)
	buf = append(buf, tmp[:8]...)

	buf = append(buf, byte(e.Op))

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(e.Table)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, e.Table...)

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(e.RecordID)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, e.RecordID...)

	buf = e.Record.Encode(buf)

	return buf
}

// DecodeEntry parses a WalEntry from its payload bytes (not the surrounding
// frame).
func DecodeEntry(buf []byte) (Entry, error) {
	if len(buf) < 8+1+4 {
		return Entry{}, fmt.Errorf("wal entry truncated: %w", shdberrors.ErrCorrupt)
	}

	seqno := binary.LittleEndian.Uint64(buf[:8])
	op := Op(buf[8])
	buf = buf[9:]

	tableLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(tableLen) {
		return Entry{}, fmt.Errorf("wal entry table truncated: %w", shdberrors.ErrCorrupt)
	}
	table := string(buf[:tableLen])
	buf = buf[tableLen:]

	if len(buf) < 4 {
		return Entry{}, fmt.Errorf("wal entry truncated: %w", shdberrors.ErrCorrupt)
	}
	idLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(idLen) {
		return Entry{}, fmt.Errorf("wal entry record_id truncated: %w", shdberrors.ErrCorrupt)
	}
	recordID := string(buf[:idLen])
	buf = buf[idLen:]

	rec, rest, err := record.Decode(buf)
	if err != nil {
		return Entry{}, err
	}
	if len(rest) != 0 {
		return Entry{}, fmt.Errorf("wal entry has trailing bytes after record: %w", shdberrors.ErrCorrupt)
	}

	return Entry{Seqno: seqno, Op: op, Table: table, RecordID: recordID, Record: rec}, nil
}

// Package page implements the immutable, on-disk sorted-run file format:
// a fixed header followed by a checksummed payload of records sorted
// ascending by id.
package page

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/nainya/shdb/pkg/shdberrors"
)

const (
	// Magic is the permanent page header magic constant, "SHDB" in ASCII.
	Magic uint32 = 0x53484442

	// Version is the current page format version.
	Version uint16 = 1
)

// Header is the fixed-schema prefix of every page file.
type Header struct {
	Magic      uint32
	Version    uint16
	Checksum   uint32
	MinID      string
	MaxID      string
	NumRecords uint32
	PageSeqno  uint64
}

// ComputeChecksum returns the CRC32 (IEEE) checksum of the payload bytes.
func ComputeChecksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Validate checks the header's internal consistency: magic and version must
// match, and min_id must not exceed max_id. It does not check the payload
// checksum; callers validate that separately once the payload is in hand.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("page header magic mismatch: got %#x want %#x: %w", h.Magic, Magic, shdberrors.ErrCorrupt)
	}
	if h.Version != Version {
		return fmt.Errorf("page header version mismatch: got %d want %d: %w", h.Version, Version, shdberrors.ErrCorrupt)
	}
	if h.NumRecords > 0 && h.MinID > h.MaxID {
		return fmt.Errorf("page header min_id %q > max_id %q: %w", h.MinID, h.MaxID, shdberrors.ErrCorrupt)
	}
	return nil
}

// Encode serializes the header to a fixed-plus-length-prefixed binary form.
func (h Header) Encode() []byte {
	size := 4 + 2 + 4 + 4 + len(h.MinID) + 4 + len(h.MaxID) + 4 + 8
	buf := make([]byte, 0, size)
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], h.Magic)
	buf = append(buf, tmp[:4]...)

	binary.LittleEndian.PutUint16(tmp[:2], h.Version)
	buf = append(buf, tmp[:2]...)

	binary.LittleEndian.PutUint32(tmp[:4], h.Checksum)
	buf = append(buf, tmp[:4]...)

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(h.MinID)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, h.MinID...)

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(h.MaxID)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, h.MaxID...)

	binary.LittleEndian.PutUint32(tmp[:4], h.NumRecords)
	buf = append(buf, tmp[:4]...)

	binary.LittleEndian.PutUint64(tmp[:8], h.PageSeqno)
	buf = append(buf, tmp[:8]...)

	return buf
}

// DecodeHeader parses a Header from the front of buf and returns the
// remaining, unconsumed bytes (the payload).
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < 4+2+4+4 {
		return Header{}, nil, fmt.Errorf("page header truncated: %w", shdberrors.ErrCorrupt)
	}

	var h Header
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	h.Checksum = binary.LittleEndian.Uint32(buf[6:10])
	buf = buf[10:]

	minLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(minLen) {
		return Header{}, nil, fmt.Errorf("page header min_id truncated: %w", shdberrors.ErrCorrupt)
	}
	h.MinID = string(buf[:minLen])
	buf = buf[minLen:]

	if len(buf) < 4 {
		return Header{}, nil, fmt.Errorf("page header truncated: %w", shdberrors.ErrCorrupt)
	}
	maxLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(maxLen) {
		return Header{}, nil, fmt.Errorf("page header max_id truncated: %w", shdberrors.ErrCorrupt)
	}
	h.MaxID = string(buf[:maxLen])
	buf = buf[maxLen:]

	if len(buf) < 12 {
		return Header{}, nil, fmt.Errorf("page header truncated: %w", shdberrors.ErrCorrupt)
	}
	h.NumRecords = binary.LittleEndian.Uint32(buf[:4])
	h.PageSeqno = binary.LittleEndian.Uint64(buf[4:12])
	buf = buf[12:]

	return h, buf, nil
}

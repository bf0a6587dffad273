// Package shdberrors defines the sentinel error kinds shared across the
// storage engine's packages.
package shdberrors

import "errors"

var (
	// ErrIO marks an underlying filesystem failure.
	ErrIO = errors.New("shdb: io error")

	// ErrCorrupt marks a checksum mismatch, frame-length mismatch, seqno
	// monotonicity violation, header magic/version mismatch, or
	// record-count mismatch.
	ErrCorrupt = errors.New("shdb: corrupt data")

	// ErrAlreadyExists marks an attempt to write a page at an existing path.
	ErrAlreadyExists = errors.New("shdb: already exists")

	// ErrInvalidValue marks a NaN float passed to FieldValue construction.
	ErrInvalidValue = errors.New("shdb: invalid value")

	// ErrEmpty marks a page builder build with no records.
	ErrEmpty = errors.New("shdb: empty")
)

// Package wal implements the append-only write-ahead log: length-framed
// entries, tolerant replay of a torn tail, and checkpoint-driven rewrite.
package wal

import "errors"

var (
	// ErrClosed indicates an operation on a closed WAL.
	ErrClosed = errors.New("wal: closed")
)

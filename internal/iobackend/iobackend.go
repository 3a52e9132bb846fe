// Package iobackend defines a pluggable batch I/O contract in front of
// the database file, separate from the single-page pageio.Store used by
// the overflow manager. The default backend issues each batched
// operation as an ordinary positioned read/write; an alternate backend
// (io_uring, aligned direct I/O, or similar) could satisfy the same
// interface without the engine knowing the difference.
package iobackend

import "github.com/tuannm99/thunder/internal/pagefmt"

// WriteOp is one page-sized write at a given page ID.
type WriteOp struct {
	ID   pagefmt.PageID
	Data []byte
}

// ReadOp requests the page at ID, to be filled into Buf.
type ReadOp struct {
	ID  pagefmt.PageID
	Buf []byte
}

// ReadResult pairs a ReadOp's page ID with its outcome.
type ReadResult struct {
	ID  pagefmt.PageID
	Err error
}

// Backend is the batch I/O contract an engine can be driven against
// instead of one page at a time. Only syncFileBackend is shipped; the
// interface exists so an alternate backend can be substituted without
// changing any caller.
type Backend interface {
	// WriteBatch writes every op, in order, returning the first error
	// encountered (if any); later ops in the batch are still attempted.
	WriteBatch(ops []WriteOp) error
	// ReadBatch reads every op, returning one ReadResult per op in the
	// same order as ops.
	ReadBatch(ops []ReadOp) []ReadResult
	// Sync flushes and fsyncs everything written so far through this
	// backend.
	Sync() error
	// SupportsParallel reports whether WriteBatch/ReadBatch may issue
	// their operations concurrently rather than strictly in order.
	SupportsParallel() bool
	// OptimalBatchSize is a hint for how many ops a caller should
	// accumulate before calling WriteBatch/ReadBatch.
	OptimalBatchSize() int
}

package iobackend

import (
	"os"

	"github.com/tuannm99/thunder/internal/pagefmt"
)

// syncFileBackend is the default Backend: each op is issued as its own
// positioned read/write against the database file, with no batching or
// parallelism. The engine does not use it: its own page I/O goes through
// internal/engine's fileStore, not through a Backend.
type syncFileBackend struct {
	f        *os.File
	pageSize pagefmt.PageSize
}

// NewSyncFileBackend wraps f as a Backend over fixed-size pages.
func NewSyncFileBackend(f *os.File, pageSize pagefmt.PageSize) Backend {
	return &syncFileBackend{f: f, pageSize: pageSize}
}

func (b *syncFileBackend) WriteBatch(ops []WriteOp) error {
	var firstErr error
	for _, op := range ops {
		_, err := b.f.WriteAt(op.Data, pagefmt.Offset(op.ID, b.pageSize))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *syncFileBackend) ReadBatch(ops []ReadOp) []ReadResult {
	results := make([]ReadResult, len(ops))
	for i, op := range ops {
		_, err := b.f.ReadAt(op.Buf, pagefmt.Offset(op.ID, b.pageSize))
		results[i] = ReadResult{ID: op.ID, Err: err}
	}
	return results
}

func (b *syncFileBackend) Sync() error {
	return b.f.Sync()
}

// SupportsParallel is always false: each op is a plain sequential
// syscall against a single *os.File.
func (b *syncFileBackend) SupportsParallel() bool { return false }

// OptimalBatchSize is 1, since batching buys nothing for this backend;
// a backend capable of real scatter-gather I/O would report higher.
func (b *syncFileBackend) OptimalBatchSize() int { return 1 }

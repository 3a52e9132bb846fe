package engine

import (
	"time"

	"github.com/tuannm99/thunder/internal/checkpoint"
	"github.com/tuannm99/thunder/internal/groupcommit"
	"github.com/tuannm99/thunder/internal/pagefmt"
	"github.com/tuannm99/thunder/internal/wal"
)

// DefaultOverflowThreshold is the value size, in bytes, at or above which
// an entry's value spills to an overflow chain instead of staying
// inline in the data section.
const DefaultOverflowThreshold = 16 << 10

// WALOptions configures the write-ahead log the engine drives through
// internal/wal and internal/groupcommit.
type WALOptions struct {
	Enabled         bool
	Dir             string
	SyncMode        wal.SyncMode
	MaxSegmentBytes int64
	MaxBatchSize    int
	MaxWait         time.Duration
}

// BloomOptions configures the negative-lookup accelerator's sizing.
type BloomOptions struct {
	ExpectedItems     int
	FalsePositiveRate float64
}

// Options configures a Database at open time.
type Options struct {
	PageSize          pagefmt.PageSize
	OverflowThreshold int
	WAL               WALOptions
	Bloom             BloomOptions
	Checkpoint        checkpoint.Policy
}

// DefaultOptions returns Thunder's default configuration: 32KiB pages,
// a 16KiB overflow threshold, WAL enabled with immediate sync in a
// sibling directory named after the database file plus ".wal", and the
// default checkpoint policy.
func DefaultOptions(path string) Options {
	return Options{
		PageSize:          pagefmt.DefaultPageSize,
		OverflowThreshold: DefaultOverflowThreshold,
		WAL: WALOptions{
			Enabled:         true,
			Dir:             path + ".wal",
			SyncMode:        wal.SyncImmediate,
			MaxSegmentBytes: wal.DefaultMaxSegmentBytes,
			MaxBatchSize:    groupcommit.DefaultMaxBatchSize,
			MaxWait:         groupcommit.DefaultMaxWait,
		},
		Bloom: BloomOptions{
			ExpectedItems:     1 << 20,
			FalsePositiveRate: 0.01,
		},
		Checkpoint: checkpoint.DefaultPolicy(),
	}
}

// PageSizeFromBytes converts a raw byte count into a pagefmt.PageSize,
// for callers (like thunderconfig) parsing an integer out of a config
// file. The caller must check Valid() on the result.
func PageSizeFromBytes(n int) pagefmt.PageSize {
	return pagefmt.PageSize(n)
}

// NVMeOptimized returns a preset tuned for fast local NVMe storage:
// batched WAL sync, a larger segment size, and a larger group-commit
// batch cap with a shorter maximum wait than the defaults.
func NVMeOptimized(path string) Options {
	opts := DefaultOptions(path)
	opts.WAL.SyncMode = wal.SyncBatched
	opts.WAL.MaxSegmentBytes = 256 << 20
	opts.WAL.MaxBatchSize = 256
	opts.WAL.MaxWait = 500 * time.Microsecond
	return opts
}

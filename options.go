package thunder

import (
	"fmt"

	"github.com/tuannm99/thunder/internal/engine"
	"github.com/tuannm99/thunder/internal/thunderconfig"
	"github.com/tuannm99/thunder/internal/wal"
)

// Options configures a Database at open time.
type Options = engine.Options

// WALOptions configures the write-ahead log.
type WALOptions = engine.WALOptions

// BloomOptions configures the negative-lookup accelerator's sizing.
type BloomOptions = engine.BloomOptions

// DefaultOptions returns Thunder's default configuration: 32KiB pages,
// a 16KiB overflow threshold, an immediate-sync WAL, and the default
// checkpoint policy.
func DefaultOptions(path string) Options { return engine.DefaultOptions(path) }

// NVMeOptimized returns a preset tuned for fast local NVMe storage.
func NVMeOptimized(path string) Options { return engine.NVMeOptimized(path) }

// OptionsFromConfig translates a loaded thunderconfig.Config into
// Options, filling in Thunder's defaults for any field left at its zero
// value. WAL.Enabled is the exception: it is always copied from cfg, so
// an omitted wal.enabled disables the WAL.
func OptionsFromConfig(cfg *thunderconfig.Config) (Options, error) {
	opts := DefaultOptions(cfg.Database.File)

	if cfg.Database.PageSize != 0 {
		opts.PageSize = engine.PageSizeFromBytes(cfg.Database.PageSize)
		if !opts.PageSize.Valid() {
			return Options{}, fmt.Errorf("thunderconfig: invalid page_size %d", cfg.Database.PageSize)
		}
	}
	if cfg.Database.OverflowThreshold != 0 {
		opts.OverflowThreshold = cfg.Database.OverflowThreshold
	}

	opts.WAL.Enabled = cfg.WAL.Enabled
	if cfg.WAL.Dir != "" {
		opts.WAL.Dir = cfg.WAL.Dir
	}
	if cfg.WAL.MaxSegmentBytes != 0 {
		opts.WAL.MaxSegmentBytes = cfg.WAL.MaxSegmentBytes
	}
	if cfg.WAL.MaxBatchSize != 0 {
		opts.WAL.MaxBatchSize = cfg.WAL.MaxBatchSize
	}
	if cfg.WAL.MaxWaitMicros != 0 {
		opts.WAL.MaxWait = cfg.MaxWait()
	}
	switch cfg.WAL.SyncMode {
	case "", "immediate":
		opts.WAL.SyncMode = wal.SyncImmediate
	case "batched":
		opts.WAL.SyncMode = wal.SyncBatched
	case "none":
		opts.WAL.SyncMode = wal.SyncNone
	default:
		return Options{}, fmt.Errorf("thunderconfig: unknown wal.sync_mode %q", cfg.WAL.SyncMode)
	}

	if cfg.Bloom.ExpectedItems != 0 {
		opts.Bloom.ExpectedItems = cfg.Bloom.ExpectedItems
	}
	if cfg.Bloom.FalsePositiveRate != 0 {
		opts.Bloom.FalsePositiveRate = cfg.Bloom.FalsePositiveRate
	}

	if cfg.Checkpoint.IntervalSeconds != 0 {
		opts.Checkpoint.Interval = cfg.CheckpointInterval()
	}
	if cfg.Checkpoint.WALBytesThreshold != 0 {
		opts.Checkpoint.WALBytesThreshold = cfg.Checkpoint.WALBytesThreshold
	}
	if cfg.Checkpoint.MinRecords != 0 {
		opts.Checkpoint.MinRecords = uint64(cfg.Checkpoint.MinRecords)
	}

	return opts, nil
}

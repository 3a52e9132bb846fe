// Package checkpoint decides when the engine should fold the WAL tail
// into a fresh persisted tree image and truncate the log, and records
// the bookkeeping a restart needs to resume from the last one. The
// checkpoint descriptor is carried in the meta page's checkpoint fields
// rather than a side file.
package checkpoint

import (
	"sync"
	"time"

	"github.com/tuannm99/thunder/internal/wal"
)

// Policy bounds how far the WAL may grow, and how long, before a
// checkpoint is due.
type Policy struct {
	// Interval is the maximum wall-clock time between checkpoints.
	Interval time.Duration
	// WALBytesThreshold triggers a checkpoint once the active segment
	// has grown past this size since the last checkpoint.
	WALBytesThreshold int64
	// MinRecords avoids checkpointing too eagerly on a mostly-idle
	// database: at least this many records must have been appended
	// since the last checkpoint.
	MinRecords uint64
}

// DefaultPolicy returns a five-minute interval, a 128MiB WAL growth
// threshold, and a ten-thousand record floor.
func DefaultPolicy() Policy {
	return Policy{
		Interval:          5 * time.Minute,
		WALBytesThreshold: 128 << 20,
		MinRecords:        10_000,
	}
}

// Info is the durable record of the last checkpoint, mirrored in the
// meta page's checkpoint_lsn/checkpoint_timestamp/checkpoint_entry_count
// fields.
type Info struct {
	LSN        wal.LSN
	Timestamp  time.Time
	EntryCount uint64
}

// Manager tracks checkpoint timing and exposes the should-checkpoint
// decision to the engine's commit loop.
type Manager struct {
	mu sync.Mutex

	policy Policy
	last   Info

	recordsSinceCheckpoint uint64
	walBytesAtLastCheck    int64
}

// New creates a Manager seeded with the checkpoint recorded at open time
// (the zero Info if this is a fresh database).
func New(policy Policy, last Info) *Manager {
	return &Manager{policy: policy, last: last}
}

// RecordAppend tracks one more WAL record written since the last
// checkpoint, for the MinRecords trigger.
func (m *Manager) RecordAppend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordsSinceCheckpoint++
}

// ShouldCheckpoint reports whether a checkpoint is due given the active
// segment's current size and the current time.
func (m *Manager) ShouldCheckpoint(activeSegmentBytes int64, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordsSinceCheckpoint < m.policy.MinRecords {
		return false
	}
	if now.Sub(m.last.Timestamp) >= m.policy.Interval {
		return true
	}
	if activeSegmentBytes-m.walBytesAtLastCheck >= m.policy.WALBytesThreshold {
		return true
	}
	return false
}

// RecordCheckpoint marks that a checkpoint completed at lsn, resetting
// the triggers that track progress since the last one.
func (m *Manager) RecordCheckpoint(lsn wal.LSN, now time.Time, activeSegmentBytes int64) Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = Info{LSN: lsn, Timestamp: now, EntryCount: m.recordsSinceCheckpoint}
	m.recordsSinceCheckpoint = 0
	m.walBytesAtLastCheck = activeSegmentBytes
	return m.last
}

// Last returns the most recently recorded checkpoint.
func (m *Manager) Last() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Restore seeds a Manager's last-checkpoint state from a meta page read
// at open time, without altering the policy.
func Restore(policy Policy, info Info) *Manager {
	return New(policy, info)
}

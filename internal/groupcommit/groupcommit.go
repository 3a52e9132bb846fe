// Package groupcommit batches concurrent write-transaction commits into
// fewer WAL fsync calls using the classic leader/follower pattern:
// whichever goroutine's fsync call arrives first becomes leader for the
// batch and wakes every follower once it returns, using the same
// sync.Mutex/sync.Cond-style coordination as Thunder's other waiter
// queues, sitting in front of internal/wal.
package groupcommit

import (
	"sync"
	"time"

	"github.com/tuannm99/thunder/internal/wal"
)

// DefaultMaxBatchSize and DefaultMaxWait bound how long a follower will
// wait to be folded into a leader's fsync before a solo commit proceeds.
const (
	DefaultMaxBatchSize = 64
	DefaultMaxWait      = 2 * time.Millisecond
)

// Stats tracks lifetime counters for observability.
type Stats struct {
	BatchCount   uint64
	TotalCommits uint64
}

// Coordinator batches Append+Sync pairs against a single *wal.WAL.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	w            *wal.WAL
	maxBatchSize int
	maxWait      time.Duration

	pending    int
	generation uint64
	syncErr    error

	stats Stats
}

// New wraps w with group-commit batching.
func New(w *wal.WAL, maxBatchSize int, maxWait time.Duration) *Coordinator {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	c := &Coordinator{w: w, maxBatchSize: maxBatchSize, maxWait: maxWait}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Commit appends records and waits until they (and any concurrently
// batched commits) have been durably synced, returning the LSN of the
// last record appended.
func (c *Coordinator) Commit(records []wal.Record) (wal.LSN, error) {
	var lastLSN wal.LSN
	for _, rec := range records {
		lsn, err := c.w.Append(rec)
		if err != nil {
			return 0, err
		}
		lastLSN = lsn
	}
	return lastLSN, c.joinBatch()
}

// joinBatch enrolls the caller in the in-flight (or about-to-start)
// sync batch and blocks until that batch's fsync has completed.
func (c *Coordinator) joinBatch() error {
	c.mu.Lock()

	myGeneration := c.generation
	c.pending++

	if c.pending == 1 {
		// First arrival: become the leader. Give a short grace period
		// for followers to pile on, cut short if the batch cap fills,
		// before paying the fsync cost.
		deadline := time.Now().Add(c.maxWait)
		const pollInterval = 100 * time.Microsecond
		for c.pending < c.maxBatchSize && time.Now().Before(deadline) {
			c.mu.Unlock()
			time.Sleep(pollInterval)
			c.mu.Lock()
		}

		batchSize := c.pending
		err := c.w.Sync()

		c.stats.BatchCount++
		c.stats.TotalCommits += uint64(batchSize)

		c.syncErr = err
		c.pending = 0
		c.generation++
		c.cond.Broadcast()
		c.mu.Unlock()
		return err
	}

	// Follower: wait for the leader whose generation we joined to
	// finish its fsync.
	for c.generation == myGeneration {
		c.cond.Wait()
	}
	err := c.syncErr
	c.mu.Unlock()
	return err
}

// Stats returns a snapshot of lifetime batching counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

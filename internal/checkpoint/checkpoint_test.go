package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldCheckpointRespectsMinRecords(t *testing.T) {
	t.Parallel()

	m := New(Policy{Interval: time.Hour, WALBytesThreshold: 1 << 30, MinRecords: 10}, Info{Timestamp: time.Now()})
	for i := 0; i < 5; i++ {
		m.RecordAppend()
	}
	require.False(t, m.ShouldCheckpoint(0, time.Now()))
}

func TestShouldCheckpointOnInterval(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := New(Policy{Interval: time.Minute, WALBytesThreshold: 1 << 30, MinRecords: 1}, Info{Timestamp: start})
	m.RecordAppend()

	require.False(t, m.ShouldCheckpoint(0, start.Add(30*time.Second)))
	require.True(t, m.ShouldCheckpoint(0, start.Add(2*time.Minute)))
}

func TestShouldCheckpointOnWALBytes(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := New(Policy{Interval: time.Hour, WALBytesThreshold: 1000, MinRecords: 1}, Info{Timestamp: start})
	m.RecordAppend()

	require.False(t, m.ShouldCheckpoint(500, start))
	require.True(t, m.ShouldCheckpoint(1500, start))
}

func TestRecordCheckpointResetsTriggers(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := New(Policy{Interval: time.Minute, WALBytesThreshold: 100, MinRecords: 1}, Info{Timestamp: start})
	m.RecordAppend()
	require.True(t, m.ShouldCheckpoint(200, start.Add(2*time.Minute)))

	info := m.RecordCheckpoint(42, start.Add(2*time.Minute), 200)
	require.Equal(t, uint64(42), uint64(info.LSN))

	require.False(t, m.ShouldCheckpoint(250, start.Add(2*time.Minute)))
}

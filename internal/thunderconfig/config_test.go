package thunderconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  file: /var/lib/thunder/data.db
  page_size: 32768
  overflow_threshold: 16384
wal:
  enabled: true
  dir: /var/lib/thunder/wal
  sync_mode: batched
  max_segment_bytes: 67108864
  max_batch_size: 64
  max_wait_micros: 500
bloom:
  expected_items: 1000000
  false_positive_rate: 0.01
checkpoint:
  interval_seconds: 300
  wal_bytes_threshold: 134217728
  min_records: 10000
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadParsesEveryField(t *testing.T) {
	cfg, err := Load(writeSample(t))
	require.NoError(t, err)

	require.Equal(t, "/var/lib/thunder/data.db", cfg.Database.File)
	require.Equal(t, 32768, cfg.Database.PageSize)
	require.Equal(t, 16384, cfg.Database.OverflowThreshold)

	require.True(t, cfg.WAL.Enabled)
	require.Equal(t, "/var/lib/thunder/wal", cfg.WAL.Dir)
	require.Equal(t, "batched", cfg.WAL.SyncMode)
	require.Equal(t, int64(64), int64(cfg.WAL.MaxBatchSize))
	require.Equal(t, 500*time.Microsecond, cfg.MaxWait())

	require.Equal(t, 1000000, cfg.Bloom.ExpectedItems)
	require.Equal(t, 0.01, cfg.Bloom.FalsePositiveRate)

	require.Equal(t, 300*time.Second, cfg.CheckpointInterval())
	require.Equal(t, int64(134217728), cfg.Checkpoint.WALBytesThreshold)
	require.Equal(t, int64(10000), cfg.Checkpoint.MinRecords)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

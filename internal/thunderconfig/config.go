// Package thunderconfig loads thunderctl's YAML configuration: a typed
// struct with mapstructure tags, read in through a scoped viper.Viper
// rather than the global instance.
package thunderconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is thunderctl's on-disk configuration.
type Config struct {
	Database struct {
		File              string `mapstructure:"file"`
		PageSize          int    `mapstructure:"page_size"`
		OverflowThreshold int    `mapstructure:"overflow_threshold"`
	} `mapstructure:"database"`

	WAL struct {
		Enabled         bool   `mapstructure:"enabled"`
		Dir             string `mapstructure:"dir"`
		SyncMode        string `mapstructure:"sync_mode"`
		MaxSegmentBytes int64  `mapstructure:"max_segment_bytes"`
		MaxBatchSize    int    `mapstructure:"max_batch_size"`
		MaxWaitMicros   int64  `mapstructure:"max_wait_micros"`
	} `mapstructure:"wal"`

	Bloom struct {
		ExpectedItems     int     `mapstructure:"expected_items"`
		FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
	} `mapstructure:"bloom"`

	Checkpoint struct {
		IntervalSeconds   int64 `mapstructure:"interval_seconds"`
		WALBytesThreshold int64 `mapstructure:"wal_bytes_threshold"`
		MinRecords        int64 `mapstructure:"min_records"`
	} `mapstructure:"checkpoint"`
}

// MaxWait returns the WAL.MaxWaitMicros field as a time.Duration.
func (c Config) MaxWait() time.Duration {
	return time.Duration(c.WAL.MaxWaitMicros) * time.Microsecond
}

// CheckpointInterval returns the Checkpoint.IntervalSeconds field as a
// time.Duration.
func (c Config) CheckpointInterval() time.Duration {
	return time.Duration(c.Checkpoint.IntervalSeconds) * time.Second
}

// Load reads and unmarshals the YAML config at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AIDTRACE_ROOT_IDENTITY", "root")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, uint64(DefaultMinScans), cfg.Ledger.MinScans)
		assert.Equal(t, DefaultRefundLock, cfg.Ledger.RefundLock)
		assert.Equal(t, "aidtrace:events", cfg.Redis.Channel)
		assert.Equal(t, "aidtrace.ledger.events", cfg.Kafka.Topic)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, DefaultWriteRateLimit, cfg.Server.WriteRateLimit)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AIDTRACE_ROOT_IDENTITY", "root")
		t.Setenv("AIDTRACE_MIN_SCANS", "5")
		t.Setenv("AIDTRACE_REFUND_LOCK", "72h")
		t.Setenv("AIDTRACE_KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("AIDTRACE_WRITE_RATE_LIMIT", "0")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, uint64(5), cfg.Ledger.MinScans)
		assert.Equal(t, 72*time.Hour, cfg.Ledger.RefundLock)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Zero(t, cfg.Server.WriteRateLimit)
	})

	t.Run("rejects zero min scans", func(t *testing.T) {
		t.Setenv("AIDTRACE_ROOT_IDENTITY", "root")
		t.Setenv("AIDTRACE_MIN_SCANS", "0")

		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("requires root identity", func(t *testing.T) {
		t.Setenv("AIDTRACE_ROOT_IDENTITY", "")

		_, err := FromEnv()
		assert.Error(t, err)
	})
}

func TestLoadSchedule(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads entries in order", func(t *testing.T) {
		path := filepath.Join(dir, "schedule.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
milestones:
  - stage: transport
    percent: 10
  - stage: hub
    percent: 30
  - stage: beneficiary
    percent: 60
`), 0o600))

		entries, err := LoadSchedule(path)
		require.NoError(t, err)
		assert.Equal(t, []ScheduleEntry{
			{Stage: "transport", Percent: 10},
			{Stage: "hub", Percent: 30},
			{Stage: "beneficiary", Percent: 60},
		}, entries)
	})

	t.Run("empty file is an error", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("milestones: []\n"), 0o600))

		_, err := LoadSchedule(path)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadSchedule(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("should read a file over the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
window_timeout_seconds: 30
inflight_trace_max_span_count:
  T2: 5
default_max_span_count: 3
sampling_percent: 50
tasks: 4
store:
  backend: redis
  redis:
    address: redis:6379
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.WindowTimeoutSeconds)
		assert.Equal(t, map[string]int64{"T2": 5}, cfg.InflightTraceMaxSpanCount)
		assert.Equal(t, int64(3), cfg.DefaultSpanLimit())
		assert.Equal(t, 50.0, cfg.Sampling())
		assert.Equal(t, 4, cfg.Tasks)
		assert.Equal(t, RedisBackend, cfg.Store.Backend)
		assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
		assert.Equal(t, "span-grouper", cfg.Store.Redis.KeyPrefix)
		assert.Equal(t, 1024, cfg.TaskQueueSize)
		assert.Equal(t, ":4317", cfg.Receiver.ListenAddress)
	})

	t.Run("should load the bundled sample configuration", func(t *testing.T) {
		cfg, err := Load(filepath.Join("..", "..", "config", "span_grouper.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.WindowTimeout())
		assert.Equal(t, int64(500), cfg.InflightTraceMaxSpanCount["tenant-a"])
		assert.Equal(t, int64(1000), cfg.DefaultSpanLimit())
		assert.Zero(t, cfg.Sampling())
		assert.Equal(t, BoltBackend, cfg.Store.Backend)
		assert.True(t, cfg.Output.Elasticsearch.Enabled)
	})

	t.Run("should report a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParse(t *testing.T) {
	t.Run("should leave optional limits and sampling unset", func(t *testing.T) {
		cfg, err := Parse([]byte("window_timeout_seconds: 10\n"))
		require.NoError(t, err)
		assert.Nil(t, cfg.DefaultMaxSpanCount)
		assert.Equal(t, int64(0), cfg.DefaultSpanLimit())
		assert.Equal(t, 0.0, cfg.Sampling())
		assert.Equal(t, 1, cfg.Tasks)
	})

	invalid := map[string]string{
		"should require a window timeout":            "tasks: 1\n",
		"should reject a non positive tenant limit":  "window_timeout_seconds: 1\ninflight_trace_max_span_count:\n  a: 0\n",
		"should reject a non positive default limit": "window_timeout_seconds: 1\ndefault_max_span_count: -1\n",
		"should reject sampling above 100":           "window_timeout_seconds: 1\nsampling_percent: 101\n",
		"should reject zero sampling":                "window_timeout_seconds: 1\nsampling_percent: 0\n",
		"should reject an unknown backend":           "window_timeout_seconds: 1\nstore:\n  backend: leveldb\n",
		"should reject zero tasks":                   "window_timeout_seconds: 1\ntasks: 0\n",
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("should report malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("window_timeout_seconds: [1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("should build a logger at the configured level", func(t *testing.T) {
		logger, err := NewLogger(LoggingConfig{Level: "debug", Development: true})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("should reject an unknown level", func(t *testing.T) {
		_, err := NewLogger(LoggingConfig{Level: "loud"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

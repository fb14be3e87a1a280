package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type StoreBackend string

const (
	BoltBackend   StoreBackend = "bolt"
	RedisBackend  StoreBackend = "redis"
	MemoryBackend StoreBackend = "memory"
)

// Config is resolved once at startup.
type Config struct {
	// WindowTimeoutSeconds is the quiet period after the last span of a trace
	// before the trace is emitted. Required.
	WindowTimeoutSeconds int `yaml:"window_timeout_seconds"`

	// InflightTraceMaxSpanCount caps the spans buffered per trace, by tenant.
	InflightTraceMaxSpanCount map[string]int64 `yaml:"inflight_trace_max_span_count"`

	// DefaultMaxSpanCount applies to tenants without an override. Unset means
	// unbounded.
	DefaultMaxSpanCount *int64 `yaml:"default_max_span_count"`

	// SamplingPercent forwards only that share of completed traces. Unset
	// forwards everything.
	SamplingPercent *float64 `yaml:"sampling_percent"`

	// Tasks is the number of partitions. It must not change between restarts
	// that reuse the same stores.
	Tasks int `yaml:"tasks"`

	// TaskQueueSize is the number of spans buffered in front of each task.
	TaskQueueSize int `yaml:"task_queue_size"`

	Store             StoreConfig             `yaml:"store"`
	Receiver          ReceiverConfig          `yaml:"receiver"`
	Output            OutputConfig            `yaml:"output"`
	Metrics           MetricsConfig           `yaml:"metrics"`
	EmittedTraceCache EmittedTraceCacheConfig `yaml:"emitted_trace_cache"`
	Logging           LoggingConfig           `yaml:"logging"`
}

type StoreConfig struct {
	Backend StoreBackend `yaml:"backend"`
	// Dir holds one bolt file per task.
	Dir   string      `yaml:"dir"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type ReceiverConfig struct {
	ListenAddress     string `yaml:"listen_address"`
	TenantIDAttribute string `yaml:"tenant_id_attribute"`
	DefaultTenantID   string `yaml:"default_tenant_id"`
}

type OutputConfig struct {
	// Topic is the event bus topic completed traces are published on.
	Topic         string              `yaml:"topic"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

type ElasticsearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

type EmittedTraceCacheConfig struct {
	Enabled    bool  `yaml:"enabled"`
	TTLSeconds int   `yaml:"ttl_seconds"`
	MaxTraces  int64 `yaml:"max_traces"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a configuration with every optional field set. The window
// timeout is left unset.
func Default() *Config {
	return &Config{
		Tasks:         1,
		TaskQueueSize: 1024,
		Store: StoreConfig{
			Backend: BoltBackend,
			Dir:     "data",
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "span-grouper",
			},
		},
		Receiver: ReceiverConfig{
			ListenAddress:     ":4317",
			TenantIDAttribute: "tenant-id",
		},
		Output: OutputConfig{
			Topic: "structured-traces",
			Elasticsearch: ElasticsearchConfig{
				Addresses: []string{"http://localhost:9200"},
				Index:     "trace_index",
			},
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9464",
		},
		EmittedTraceCache: EmittedTraceCacheConfig{
			Enabled:    true,
			TTLSeconds: 3600,
			MaxTraces:  100_000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.WindowTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("window_timeout_seconds must be positive, got %d", c.WindowTimeoutSeconds))
	}
	for tenant, limit := range c.InflightTraceMaxSpanCount {
		if limit <= 0 {
			errs = append(errs, fmt.Errorf("inflight_trace_max_span_count for %q must be positive, got %d", tenant, limit))
		}
	}
	if c.DefaultMaxSpanCount != nil && *c.DefaultMaxSpanCount <= 0 {
		errs = append(errs, fmt.Errorf("default_max_span_count must be positive, got %d", *c.DefaultMaxSpanCount))
	}
	if c.SamplingPercent != nil && (*c.SamplingPercent <= 0 || *c.SamplingPercent > 100) {
		errs = append(errs, fmt.Errorf("sampling_percent must be in (0, 100], got %v", *c.SamplingPercent))
	}
	if c.Tasks <= 0 {
		errs = append(errs, fmt.Errorf("tasks must be positive, got %d", c.Tasks))
	}
	if c.TaskQueueSize < 0 {
		errs = append(errs, fmt.Errorf("task_queue_size must not be negative, got %d", c.TaskQueueSize))
	}
	switch c.Store.Backend {
	case BoltBackend:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the bolt backend"))
		}
	case RedisBackend:
		if c.Store.Redis.Address == "" {
			errs = append(errs, errors.New("store.redis.address is required for the redis backend"))
		}
	case MemoryBackend:
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	if c.Output.Elasticsearch.Enabled && len(c.Output.Elasticsearch.Addresses) == 0 {
		errs = append(errs, errors.New("output.elasticsearch.addresses is required when elasticsearch is enabled"))
	}
	if c.EmittedTraceCache.Enabled && (c.EmittedTraceCache.MaxTraces <= 0 || c.EmittedTraceCache.TTLSeconds <= 0) {
		errs = append(errs, errors.New("emitted_trace_cache.max_traces and ttl_seconds must be positive when enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) WindowTimeout() time.Duration {
	return time.Duration(c.WindowTimeoutSeconds) * time.Second
}

// DefaultSpanLimit is zero when no default is configured.
func (c *Config) DefaultSpanLimit() int64 {
	if c.DefaultMaxSpanCount == nil {
		return 0
	}
	return *c.DefaultMaxSpanCount
}

// Sampling is zero when sampling is disabled.
func (c *Config) Sampling() float64 {
	if c.SamplingPercent == nil {
		return 0
	}
	return *c.SamplingPercent
}

func (c *EmittedTraceCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

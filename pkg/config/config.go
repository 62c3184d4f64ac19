package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full engine configuration. Millisecond fields mirror the
// wire names used by deployments; use the duration accessors in code.
type Config struct {
	RootPath     string   `yaml:"root_path"`
	AllowedRoots []string `yaml:"allowed_roots"`
	DatabaseURL  string   `yaml:"database_url"`

	WorkerCountDefault        int   `yaml:"worker_count_default"`
	MaxConcurrentFilesDefault int   `yaml:"max_concurrent_files_default"`
	PollIntervalDefaultMS     int64 `yaml:"poll_interval_default_ms"`
	ReadTimeoutMS             int64 `yaml:"read_timeout_ms"`
	WarmReadBytes             int64 `yaml:"warm_read_bytes"`
	IndexBatchSize            int   `yaml:"index_batch_size"`
	DirectorySizeCacheTTLMS   int64 `yaml:"directory_size_cache_ttl_ms"`
	RollupMaxDepth            int   `yaml:"rollup_max_depth"`
	ShutdownTimeoutMS         int64 `yaml:"shutdown_timeout_ms"`
	WorkerLeaseTimeoutMS      int64 `yaml:"worker_lease_timeout_ms"`
	RequeueOnPause            bool  `yaml:"requeue_on_pause"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
}

// DefaultConfig returns a Config with every tunable at its default value.
// RootPath and DatabaseURL have no defaults and must be provided.
func DefaultConfig() *Config {
	return &Config{
		WorkerCountDefault:        4,
		MaxConcurrentFilesDefault: 5,
		PollIntervalDefaultMS:     2000,
		ReadTimeoutMS:             10000,
		WarmReadBytes:             4096,
		IndexBatchSize:            500,
		DirectorySizeCacheTTLMS:   3600000,
		RollupMaxDepth:            20,
		ShutdownTimeoutMS:         30000,
		WorkerLeaseTimeoutMS:      60000,
		RequeueOnPause:            false,
		LogLevel:                  "info",
	}
}

// Load reads a YAML config file and merges it over the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyFallbacks()
	return cfg, nil
}

// applyFallbacks fills derived values after file or flag merging
func (c *Config) applyFallbacks() {
	if len(c.AllowedRoots) == 0 && c.RootPath != "" {
		c.AllowedRoots = []string{c.RootPath}
	}
	for i, root := range c.AllowedRoots {
		c.AllowedRoots[i] = filepath.Clean(root)
	}
	if c.RootPath != "" {
		c.RootPath = filepath.Clean(c.RootPath)
	}
}

// Validate checks that the configuration is complete and consistent
func (c *Config) Validate() error {
	c.applyFallbacks()

	if c.RootPath == "" {
		return fmt.Errorf("root_path is required")
	}
	if !filepath.IsAbs(c.RootPath) {
		return fmt.Errorf("root_path must be absolute: %s", c.RootPath)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.WorkerCountDefault < 1 {
		return fmt.Errorf("worker_count_default must be >= 1")
	}
	if c.MaxConcurrentFilesDefault < 1 {
		return fmt.Errorf("max_concurrent_files_default must be >= 1")
	}
	if c.PollIntervalDefaultMS < 100 {
		return fmt.Errorf("poll_interval_default_ms must be >= 100")
	}
	if c.IndexBatchSize < 1 || c.IndexBatchSize > 1000 {
		return fmt.Errorf("index_batch_size must be between 1 and 1000")
	}
	if c.RollupMaxDepth < 1 {
		return fmt.Errorf("rollup_max_depth must be >= 1")
	}
	if c.WarmReadBytes < 1 {
		return fmt.Errorf("warm_read_bytes must be >= 1")
	}
	for _, root := range c.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("allowed root must be absolute: %s", root)
		}
	}
	return nil
}

// PollInterval returns the default worker poll interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalDefaultMS) * time.Millisecond
}

// ReadTimeout returns the per-file warm read timeout
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// DirectorySizeCacheTTL returns the freshness window for computed sizes
func (c *Config) DirectorySizeCacheTTL() time.Duration {
	return time.Duration(c.DirectorySizeCacheTTLMS) * time.Millisecond
}

// ShutdownTimeout returns how long Shutdown waits for in-flight items
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// WorkerLeaseTimeout returns the heartbeat age after which a worker's
// running items are considered orphaned
func (c *Config) WorkerLeaseTimeout() time.Duration {
	return time.Duration(c.WorkerLeaseTimeoutMS) * time.Millisecond
}

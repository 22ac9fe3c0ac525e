// Package config defines the Quasar configuration file.
//
// A configuration names the datasources a process can reach and the
// defaults of copy runs:
//
//	datasources:
//	  - name: staging
//	    type: sqlite
//	    dsn: ${QUASAR_DATA}/staging.db
//	  - name: export
//	    type: jsonl
//	    path: ./export
//	    compression: zstd
//	copy:
//	  readers: 8
//	  copy_null_values: false
//	cache:
//	  enabled: true
//	  size: 100000
//
// ${VAR} references are replaced by environment variables before parsing;
// ${VAR:-default} falls back to default when VAR is unset or empty.
package config

import (
	"time"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
)

// Config is the root of a configuration file.
type Config struct {
	Datasources []DatasourceConfig `yaml:"datasources" json:"datasources"`
	Copy        CopyConfig         `yaml:"copy" json:"copy"`
	Cache       CacheConfig        `yaml:"cache" json:"cache"`
	Split       SplitConfig        `yaml:"split" json:"split"`
	Logging     LoggingConfig      `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics" json:"metrics"`
	Tracing     TracingConfig      `yaml:"tracing" json:"tracing"`
}

// DatasourceConfig declares one datasource.
type DatasourceConfig struct {
	// Name identifies the datasource in commands and table references
	Name string `yaml:"name" json:"name"`
	// Type selects the backend (memory, jsonl, sqlite, postgres, mysql)
	Type string `yaml:"type" json:"type"`
	// DSN is the connection string of SQL backends
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// Path is the directory of file backends
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Compression of files created by file backends (none, gzip, zstd)
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
}

// CopyConfig holds the defaults of copy runs.
type CopyConfig struct {
	CopyMetadata   bool `yaml:"copy_metadata" json:"copy_metadata"`
	CopyValues     bool `yaml:"copy_values" json:"copy_values"`
	CopyNullValues bool `yaml:"copy_null_values" json:"copy_null_values"`
	// Readers is the number of reader goroutines; 1 copies sequentially
	Readers       int           `yaml:"readers" json:"readers"`
	QueueCapacity int           `yaml:"queue_capacity" json:"queue_capacity"`
	PollTimeout   time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
}

// CacheConfig enables the read cache in front of source tables.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Size bounds the number of cached entries; 0 is unbounded
	Size int `yaml:"size" json:"size"`
}

// SplitConfig bounds the number of data points copied per chunk.
type SplitConfig struct {
	// MaxDataPoints is rows times variables per chunk; 0 disables splitting
	MaxDataPoints int `yaml:"max_data_points" json:"max_data_points"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// TracingConfig enables OpenTelemetry spans around table copies.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Exporter is "stdout" or "none"
	Exporter     string  `yaml:"exporter" json:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
}

// Default returns a configuration with no datasources and the default copy
// settings.
func Default() *Config {
	return &Config{
		Copy: CopyConfig{
			CopyMetadata:   true,
			CopyValues:     true,
			CopyNullValues: true,
			Readers:        1,
			QueueCapacity:  150,
			PollTimeout:    100 * time.Millisecond,
		},
		Cache: CacheConfig{Size: 0},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{Address: ":9090"},
		Tracing: TracingConfig{Exporter: "stdout", SamplingRate: 1},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Datasources))
	for i, ds := range c.Datasources {
		if ds.Name == "" {
			return errors.Newf(errors.ErrorTypeConfig, "datasources[%d]: name is required", i)
		}
		if seen[ds.Name] {
			return errors.Newf(errors.ErrorTypeConfig, "datasource '%s' is declared twice", ds.Name)
		}
		seen[ds.Name] = true
		if ds.Type == "" {
			return errors.Newf(errors.ErrorTypeConfig, "datasource '%s': type is required", ds.Name)
		}
	}
	if c.Copy.Readers <= 0 {
		return errors.New(errors.ErrorTypeConfig, "copy.readers must be positive")
	}
	if c.Copy.QueueCapacity <= 0 {
		return errors.New(errors.ErrorTypeConfig, "copy.queue_capacity must be positive")
	}
	if c.Copy.PollTimeout <= 0 {
		return errors.New(errors.ErrorTypeConfig, "copy.poll_timeout must be positive")
	}
	if c.Cache.Size < 0 {
		return errors.New(errors.ErrorTypeConfig, "cache.size cannot be negative")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sampling_rate must be between 0 and 1")
	}
	if c.Split.MaxDataPoints < 0 {
		return errors.New(errors.ErrorTypeConfig, "split.max_data_points cannot be negative")
	}
	return nil
}

// Datasource returns the declaration named name.
func (c *Config) Datasource(name string) (DatasourceConfig, error) {
	for _, ds := range c.Datasources {
		if ds.Name == name {
			return ds, nil
		}
	}
	return DatasourceConfig{}, errors.NoSuchDatasource(name)
}

// LoggerConfig converts the logging section for logger.Init.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Encoding: l.Encoding, Development: l.Development}
}

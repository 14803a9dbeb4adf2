// Package config provides configuration loading for imagevault.
//
// Configuration is resolved in three steps: built-in defaults, an optional
// YAML file (.imagevault.yaml in the data directory), and IMAGEVAULT_*
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	verrors "github.com/imagevault/imagevault/internal/errors"
)

// ConfigFileName is the YAML file read from the data directory.
const ConfigFileName = ".imagevault.yaml"

// Config represents the complete imagevault configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Pipeline    PipelineConfig    `yaml:"pipeline" json:"pipeline"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Thumbnails  ThumbnailConfig   `yaml:"thumbnails" json:"thumbnails"`
	Watch       WatchConfig       `yaml:"watch" json:"watch"`
	LogLevel    string            `yaml:"log_level" json:"log_level"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path is the database file path. Empty means <data dir>/vault.db.
	Path string `yaml:"path" json:"path"`
}

// PipelineConfig tunes the crawl-hash-store pipeline.
type PipelineConfig struct {
	// Workers is the extraction worker count. Zero means NumCPU.
	Workers int `yaml:"workers" json:"workers"`

	// PathQueueSize bounds the discovery-to-extraction queue.
	// This is the pipeline's primary backpressure point.
	PathQueueSize int `yaml:"path_queue_size" json:"path_queue_size"`

	// ImageQueueSize bounds the extraction-to-store queue.
	ImageQueueSize int `yaml:"image_queue_size" json:"image_queue_size"`

	// ErrorQueueSize bounds the side error channel.
	ErrorQueueSize int `yaml:"error_queue_size" json:"error_queue_size"`
}

// SearchConfig tunes query execution.
type SearchConfig struct {
	// MaxResults caps the result count of a single query.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// MaxDistance excludes results whose computed distance exceeds it.
	MaxDistance float64 `yaml:"max_distance" json:"max_distance"`

	// ReferenceCacheSize bounds the similar-image reference cache.
	ReferenceCacheSize int `yaml:"reference_cache_size" json:"reference_cache_size"`
}

// ThumbnailConfig bounds stored thumbnails.
type ThumbnailConfig struct {
	// MaxEdge is the maximum thumbnail edge in pixels.
	MaxEdge int `yaml:"max_edge" json:"max_edge"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	// Enabled turns on live re-indexing of watched directories.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Debounce is the quiet period before a change triggers re-indexing.
	Debounce Duration `yaml:"debounce" json:"debounce"`
}

// Duration wraps time.Duration so YAML uses the human "2s" form in both
// directions.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Accepts either a duration
// string ("2s") or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value on line %d", value.Line)
	}
	*d = Duration(n)
	return nil
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Pipeline: PipelineConfig{
			Workers:        runtime.NumCPU(),
			PathQueueSize:  256,
			ImageQueueSize: 64,
			ErrorQueueSize: 128,
		},
		Search: SearchConfig{
			MaxResults:         100,
			MaxDistance:        1000,
			ReferenceCacheSize: 8,
		},
		Thumbnails: ThumbnailConfig{
			MaxEdge: 256,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: Duration(2 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load resolves the configuration for the given data directory.
func Load(dataDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dataDir, ConfigFileName)
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(dataDir, "vault.db")
	}

	return cfg, nil
}

// loadYAML merges values from a YAML file if it exists.
// A missing file is not an error; defaults apply.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return verrors.Wrap(verrors.ErrCodeConfigNotFound, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return verrors.New(verrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse %s: %v", path, err), err)
	}
	return nil
}

// applyEnvOverrides applies IMAGEVAULT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("IMAGEVAULT_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("IMAGEVAULT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("IMAGEVAULT_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("IMAGEVAULT_MAX_DISTANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Search.MaxDistance = f
		}
	}
	if v := os.Getenv("IMAGEVAULT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return verrors.New(verrors.ErrCodeConfigInvalid, "pipeline.workers must not be negative", nil)
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	if c.Pipeline.PathQueueSize <= 0 || c.Pipeline.ImageQueueSize <= 0 {
		return verrors.New(verrors.ErrCodeConfigInvalid, "pipeline queue sizes must be positive", nil)
	}
	if c.Search.MaxResults <= 0 {
		return verrors.New(verrors.ErrCodeConfigInvalid, "search.max_results must be positive", nil)
	}
	if c.Search.MaxDistance <= 0 {
		return verrors.New(verrors.ErrCodeConfigInvalid, "search.max_distance must be positive", nil)
	}
	if c.Thumbnails.MaxEdge <= 0 {
		return verrors.New(verrors.ErrCodeConfigInvalid, "thumbnails.max_edge must be positive", nil)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return verrors.New(verrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid log_level %q", c.LogLevel), nil)
	}
	return nil
}

// WriteYAML writes the configuration to the given path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return verrors.Wrap(verrors.ErrCodeConfigInvalid, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return verrors.Wrap(verrors.ErrCodeConfigInvalid, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultDataDir returns ~/.imagevault, falling back to the temp dir.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".imagevault")
	}
	return filepath.Join(home, ".imagevault")
}

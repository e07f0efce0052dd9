package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Executor ExecutorConfig `toml:"executor"`
	Fetch    FetchConfig    `toml:"fetch"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Catalog  []CatalogEntry `toml:"catalog"`
}

// CacheConfig contains the on-disk layout of the offline cache.
type CacheConfig struct {
	Dir                string `toml:"dir"`
	TrackedActionsFile string `toml:"tracked_actions_file"`
	ActionsFile        string `toml:"actions_file"`
	ContentDir         string `toml:"content_dir"`
}

// TrackedActionsPath is the file holding the tracker's persisted records.
func (c CacheConfig) TrackedActionsPath() string { return filepath.Join(c.Dir, c.TrackedActionsFile) }

// ActionsPath is the file holding the executor's pending actions.
func (c CacheConfig) ActionsPath() string { return filepath.Join(c.Dir, c.ActionsFile) }

// ContentPath is the directory fetched bytes are stored under.
func (c CacheConfig) ContentPath() string { return filepath.Join(c.Dir, c.ContentDir) }

// ExecutorConfig contains admission control and retry settings.
type ExecutorConfig struct {
	MaxParallelDownloads int      `toml:"max_parallel_downloads"`
	MinRetryCount        int      `toml:"min_retry_count"`
	RetryDelay           Duration `toml:"retry_delay"`
	MaxRetryDelay        Duration `toml:"max_retry_delay"`
}

// FetchConfig contains fetch backend settings.
type FetchConfig struct {
	UserAgent         string   `toml:"user_agent"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
}

// DatabaseConfig contains content index connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// CatalogEntry is a named stream offered by the catalog and TUI.
type CatalogEntry struct {
	Name string `toml:"name"`
	URI  string `toml:"uri"`
}

// Duration is a [time.Duration] decoded from strings such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Catalog = nil
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Catalog) == 0 {
		config.Catalog = DefaultConfig().Catalog
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects settings the cache cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Cache.Dir) == "":
		return fmt.Errorf("%w: cache.dir is required", ErrInvalidConfig)
	case c.Executor.MaxParallelDownloads <= 0:
		return fmt.Errorf("%w: executor.max_parallel_downloads must be positive", ErrInvalidConfig)
	case c.Executor.MinRetryCount < 0:
		return fmt.Errorf("%w: executor.min_retry_count must not be negative", ErrInvalidConfig)
	case c.Executor.MaxRetryDelay.Duration < c.Executor.RetryDelay.Duration:
		return fmt.Errorf("%w: executor.max_retry_delay is shorter than retry_delay", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides settings from HLSX_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("HLSX_CACHE_DIR")); v != "" {
		c.Cache.Dir = v
		c.Database.Path = filepath.Join(v, "hlsx.db")
	}
	if v := strings.TrimSpace(os.Getenv("HLSX_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

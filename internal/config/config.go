package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory and the default state directory.
const AppName = "git2doc"

// EnvPrefix is the prefix for environment overrides,
// e.g. GIT2DOC_API_BASE_URL for api.base_url.
const EnvPrefix = "GIT2DOC"

// Config represents the complete git2doc configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Poll    PollConfig    `mapstructure:"poll"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// APIConfig controls how the documentation service is reached
type APIConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8000
	BaseURL string `mapstructure:"base_url"`
	// TimeoutSeconds bounds every request (default: 30)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// UserAgent is sent with every request
	UserAgent string `mapstructure:"user_agent"`
}

// StorageConfig controls where the session token and identity are persisted
type StorageConfig struct {
	// Dir is the key-value store root. Empty means <config dir>/state.
	// A leading ~ expands to the home directory; relative paths are
	// resolved against the config directory.
	Dir string `mapstructure:"dir"`
}

// PollConfig controls the document status poll loop
type PollConfig struct {
	// IntervalMs is the delay between poll ticks (default: 3000)
	IntervalMs int `mapstructure:"interval_ms"`
	// CheckTimeoutMs bounds a single status check (default: 10000)
	CheckTimeoutMs int `mapstructure:"check_timeout_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes logs to <config dir>/logs/git2doc.log (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which the log file is rotated (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress"`
}

// OutputConfig controls command output
type OutputConfig struct {
	// Format is "table", "json" or "yaml" (default: "table")
	Format string `mapstructure:"format"`
	// Color enables styled status badges when stdout is a terminal (default: true)
	Color bool `mapstructure:"color"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
			UserAgent:      AppName,
		},
		Storage: StorageConfig{
			Dir: "", // Empty means <config dir>/state
		},
		Poll: PollConfig{
			IntervalMs:     3000,
			CheckTimeoutMs: 10000,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Output: OutputConfig{
			Format: "table",
			Color:  true,
		},
	}
}

// Timeout returns the request timeout as a time.Duration
func (c *APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the poll interval as a time.Duration
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// CheckTimeout returns the per-check timeout as a time.Duration
func (c *PollConfig) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutMs) * time.Millisecond
}

// ResolveDir returns the resolved storage directory, relative paths being
// taken from baseDir.
func (s *StorageConfig) ResolveDir(baseDir string) string {
	if s.Dir == "" {
		return filepath.Join(baseDir, "state")
	}

	path := s.Dir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// API defaults
	viper.SetDefault("api.base_url", defaults.API.BaseURL)
	viper.SetDefault("api.timeout_seconds", defaults.API.TimeoutSeconds)
	viper.SetDefault("api.user_agent", defaults.API.UserAgent)

	// Storage defaults
	viper.SetDefault("storage.dir", defaults.Storage.Dir)

	// Poll defaults
	viper.SetDefault("poll.interval_ms", defaults.Poll.IntervalMs)
	viper.SetDefault("poll.check_timeout_ms", defaults.Poll.CheckTimeoutMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Output defaults
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory log files are written to
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

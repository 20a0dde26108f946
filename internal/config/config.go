package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Downloads   DownloadsConfig   `mapstructure:"downloads"`
	Resolver    ResolverConfig    `mapstructure:"resolver"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// DownloadsConfig contains download directory and registry settings
type DownloadsConfig struct {
	RootDir          string `mapstructure:"root_dir"`
	FolderName       string `mapstructure:"folder_name"`
	ShareDir         string `mapstructure:"share_dir"`
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
	DefaultQuality   string `mapstructure:"default_quality"`
	DefaultFormat    string `mapstructure:"default_format"`
	ProgressInterval string `mapstructure:"progress_interval"`
	SnapshotInterval string `mapstructure:"snapshot_interval"`
	UserAgent        string `mapstructure:"user_agent"`
	DrainQueue       bool   `mapstructure:"drain_queue"`
}

// ResolverConfig contains simulated metadata resolver settings
type ResolverConfig struct {
	FetchDelayMin string `mapstructure:"fetch_delay_min"`
	FetchDelayMax string `mapstructure:"fetch_delay_max"`
	ResolveDelay  string `mapstructure:"resolve_delay"`
	MediaBaseURL  string `mapstructure:"media_base_url"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr       string   `mapstructure:"bind_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
	IdleTimeout    string   `mapstructure:"idle_timeout"`
}

// BackendConfig contains optional hosted backend settings.
// Leaving url or api_key empty disables the backend.
type BackendConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// MaintenanceConfig contains periodic cleanup settings
type MaintenanceConfig struct {
	CleanupInterval    string  `mapstructure:"cleanup_interval"`
	TempFileMaxAge     string  `mapstructure:"temp_file_max_age"`
	FinishedTaskMaxAge string  `mapstructure:"finished_task_max_age"`
	LowSpacePercent    float64 `mapstructure:"low_space_percent"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path.
// An empty path or a missing file leaves defaults and environment in effect.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWIFTSAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("downloads.root_dir", "./data")
	v.SetDefault("downloads.folder_name", "SwiftSaver")
	v.SetDefault("downloads.share_dir", "./data/shared")
	v.SetDefault("downloads.max_concurrent", 2)
	v.SetDefault("downloads.default_quality", "720p")
	v.SetDefault("downloads.default_format", "mp4")
	v.SetDefault("downloads.progress_interval", "250ms")
	v.SetDefault("downloads.snapshot_interval", "200ms")
	v.SetDefault("downloads.user_agent", "SwiftSaver/1.0")
	v.SetDefault("downloads.drain_queue", true)
	v.SetDefault("resolver.fetch_delay_min", "1s")
	v.SetDefault("resolver.fetch_delay_max", "2s")
	v.SetDefault("resolver.resolve_delay", "500ms")
	v.SetDefault("resolver.media_base_url", "https://sample-videos.com")
	v.SetDefault("http.bind_addr", "127.0.0.1:8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "0s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("maintenance.cleanup_interval", "1h")
	v.SetDefault("maintenance.temp_file_max_age", "24h")
	v.SetDefault("maintenance.finished_task_max_age", "24h")
	v.SetDefault("maintenance.low_space_percent", 95)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.path", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Downloads.RootDir == "" {
		return fmt.Errorf("downloads.root_dir is required")
	}
	if c.Downloads.FolderName == "" || strings.ContainsAny(c.Downloads.FolderName, `/\`) {
		return fmt.Errorf("downloads.folder_name must be a plain directory name")
	}
	if c.Downloads.MaxConcurrent < 1 || c.Downloads.MaxConcurrent > 10 {
		return fmt.Errorf("downloads.max_concurrent must be between 1 and 10")
	}

	durations := map[string]string{
		"downloads.progress_interval":       c.Downloads.ProgressInterval,
		"downloads.snapshot_interval":       c.Downloads.SnapshotInterval,
		"resolver.fetch_delay_min":          c.Resolver.FetchDelayMin,
		"resolver.fetch_delay_max":          c.Resolver.FetchDelayMax,
		"resolver.resolve_delay":            c.Resolver.ResolveDelay,
		"maintenance.cleanup_interval":      c.Maintenance.CleanupInterval,
		"maintenance.temp_file_max_age":     c.Maintenance.TempFileMaxAge,
		"maintenance.finished_task_max_age": c.Maintenance.FinishedTaskMaxAge,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if c.Maintenance.LowSpacePercent < 0 || c.Maintenance.LowSpacePercent > 100 {
		return fmt.Errorf("maintenance.low_space_percent must be between 0 and 100")
	}
	if c.Resolver.GetFetchDelayMax() < c.Resolver.GetFetchDelayMin() {
		return fmt.Errorf("resolver.fetch_delay_max must not be less than resolver.fetch_delay_min")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// DownloadDir returns the directory downloads are written to
func (c *DownloadsConfig) DownloadDir() string {
	return filepath.Join(c.RootDir, c.FolderName)
}

// GetProgressInterval returns the progress callback interval
func (c *DownloadsConfig) GetProgressInterval() time.Duration {
	return parseOr(c.ProgressInterval, 250*time.Millisecond)
}

// GetSnapshotInterval returns the minimum gap between progress-driven snapshots
func (c *DownloadsConfig) GetSnapshotInterval() time.Duration {
	return parseOr(c.SnapshotInterval, 200*time.Millisecond)
}

// GetFetchDelayMin returns the lower bound of the simulated fetch delay
func (c *ResolverConfig) GetFetchDelayMin() time.Duration {
	return parseOr(c.FetchDelayMin, time.Second)
}

// GetFetchDelayMax returns the upper bound of the simulated fetch delay
func (c *ResolverConfig) GetFetchDelayMax() time.Duration {
	return parseOr(c.FetchDelayMax, 2*time.Second)
}

// GetResolveDelay returns the simulated URL resolution delay
func (c *ResolverConfig) GetResolveDelay() time.Duration {
	return parseOr(c.ResolveDelay, 500*time.Millisecond)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseOr(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout. Zero keeps SSE streams open.
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseOr(c.IdleTimeout, 60*time.Second)
}

// GetTimeout returns the backend request timeout
func (c *BackendConfig) GetTimeout() time.Duration {
	return parseOr(c.Timeout, 10*time.Second)
}

// GetCleanupInterval returns how often temp files are swept
func (c *MaintenanceConfig) GetCleanupInterval() time.Duration {
	return parseOr(c.CleanupInterval, time.Hour)
}

// GetTempFileMaxAge returns the age after which temp files are removed
func (c *MaintenanceConfig) GetTempFileMaxAge() time.Duration {
	return parseOr(c.TempFileMaxAge, 24*time.Hour)
}

// GetFinishedTaskMaxAge returns the age after which failed and cancelled tasks are pruned
func (c *MaintenanceConfig) GetFinishedTaskMaxAge() time.Duration {
	return parseOr(c.FinishedTaskMaxAge, 24*time.Hour)
}

// DatabasePath returns the configured database path or a default under root_dir
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Downloads.RootDir, "swiftsaver.db")
}

func parseOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Package config provides configuration management for streamvio using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultMaxConcurrentJobs = 2
	defaultMaxBitrateKbps    = 20000
	defaultSegmentDuration   = 6 * time.Second
	defaultProbeTimeout      = 30 * time.Second
	defaultJobRetention      = 30 * 24 * time.Hour
	defaultThumbnailWidth    = 320
	defaultThumbnailHeight   = 180
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	FFmpeg      FFmpegConfig      `mapstructure:"ffmpeg"`
	Transcoding TranscodingConfig `mapstructure:"transcoding"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	ThumbnailDir string `mapstructure:"thumbnail_dir"`
	TempDir      string `mapstructure:"temp_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath    string        `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// TranscodingConfig holds job engine configuration.
type TranscodingConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxConcurrentJobs int           `mapstructure:"max_concurrent_jobs"`
	MaxBitrateKbps    int           `mapstructure:"max_bitrate_kbps"`
	HWAccel           string        `mapstructure:"hwaccel"` // auto, none
	SegmentDuration   time.Duration `mapstructure:"segment_duration"`
	ProfileFile       string        `mapstructure:"profile_file"` // optional YAML profile overrides
	ThumbnailWidth    int           `mapstructure:"thumbnail_width"`
	ThumbnailHeight   int           `mapstructure:"thumbnail_height"`
}

// MaintenanceConfig holds background cleanup configuration.
type MaintenanceConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Cron         string        `mapstructure:"cron"`          // 6-field cron expression
	JobRetention time.Duration `mapstructure:"job_retention"` // how long terminal jobs are kept
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREAMVIO_ and use underscores
// for nesting. Example: STREAMVIO_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamvio")
		v.AddConfigPath("$HOME/.streamvio")
	}

	// Environment variable settings
	v.SetEnvPrefix("STREAMVIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamvio.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "transcoded")
	v.SetDefault("storage.thumbnail_dir", "thumbnails")
	v.SetDefault("storage.temp_dir", "temp")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Transcoding defaults
	v.SetDefault("transcoding.enabled", true)
	v.SetDefault("transcoding.max_concurrent_jobs", defaultMaxConcurrentJobs)
	v.SetDefault("transcoding.max_bitrate_kbps", defaultMaxBitrateKbps)
	v.SetDefault("transcoding.hwaccel", "auto")
	v.SetDefault("transcoding.segment_duration", defaultSegmentDuration)
	v.SetDefault("transcoding.profile_file", "")
	v.SetDefault("transcoding.thumbnail_width", defaultThumbnailWidth)
	v.SetDefault("transcoding.thumbnail_height", defaultThumbnailHeight)

	// Maintenance defaults
	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cron", "0 0 3 * * *") // Daily at 3 AM (6-field cron)
	v.SetDefault("maintenance.job_retention", defaultJobRetention)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Transcoding validation
	if c.Transcoding.MaxConcurrentJobs < 1 {
		return fmt.Errorf("transcoding.max_concurrent_jobs must be at least 1")
	}
	if c.Transcoding.MaxBitrateKbps < 1 {
		return fmt.Errorf("transcoding.max_bitrate_kbps must be at least 1")
	}
	validHWAccel := map[string]bool{"auto": true, "none": true}
	if !validHWAccel[c.Transcoding.HWAccel] {
		return fmt.Errorf("transcoding.hwaccel must be one of: auto, none")
	}
	if c.Transcoding.SegmentDuration < time.Second {
		return fmt.Errorf("transcoding.segment_duration must be at least 1s")
	}

	// Maintenance validation
	if c.Maintenance.Enabled && c.Maintenance.JobRetention < time.Hour {
		return fmt.Errorf("maintenance.job_retention must be at least 1h")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the transcode output directory.
func (c *StorageConfig) OutputPath() string {
	return filepath.Join(c.BaseDir, c.OutputDir)
}

// ThumbnailPath returns the full path to the thumbnail directory.
func (c *StorageConfig) ThumbnailPath() string {
	return filepath.Join(c.BaseDir, c.ThumbnailDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}

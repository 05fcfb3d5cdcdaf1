// Package config provides configuration management for transcodarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultLeaseTimeout    = 120 * time.Second
	defaultChunkSeconds    = 60
	defaultProbeTimeout    = 30 * time.Second
	defaultJanitorCron     = "0 * * * *"
	defaultJobRetention    = 7 * 24 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Encode   EncodeConfig   `mapstructure:"encode"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
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
	DSN             string        `mapstructure:"dsn" masq:"secret"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DispatchConfig holds job dispatch configuration.
type DispatchConfig struct {
	// LeaseTimeout is how long a claimed job may go without a worker
	// heartbeat before it becomes dispatchable again.
	LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
}

// EncodeConfig holds encode planning configuration.
type EncodeConfig struct {
	// EnableCRF selects constant-rate-factor video encoding instead of
	// constant bitrate. Ignored when a request asks for DASH output.
	EnableCRF bool `mapstructure:"enable_crf"`

	// ChunkSeconds is the length of each planned video chunk in seconds.
	ChunkSeconds int `mapstructure:"chunk_seconds"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	ProbePath    string        `mapstructure:"probe_path"` // Path to ffprobe binary (empty = auto-detect)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// JanitorConfig holds finished-job cleanup configuration.
type JanitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Cron      string        `mapstructure:"cron"`      // 5-field cron expression
	Retention time.Duration `mapstructure:"retention"` // how long finished jobs are kept
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TRANSCODARR_ and use underscores
// for nesting. Example: TRANSCODARR_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/transcodarr")
		v.AddConfigPath("$HOME/.transcodarr")
	}

	v.SetEnvPrefix("TRANSCODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
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
// This should be called before reading the config file to ensure defaults are in place.
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
	v.SetDefault("database.dsn", "transcodarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Dispatch defaults
	v.SetDefault("dispatch.lease_timeout", defaultLeaseTimeout)

	// Encode defaults
	v.SetDefault("encode.enable_crf", false)
	v.SetDefault("encode.chunk_seconds", defaultChunkSeconds)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Janitor defaults
	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.cron", defaultJanitorCron)
	v.SetDefault("janitor.retention", defaultJobRetention)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Dispatch.LeaseTimeout <= 0 {
		return fmt.Errorf("dispatch.lease_timeout must be positive")
	}
	if c.Encode.ChunkSeconds < 1 {
		return fmt.Errorf("encode.chunk_seconds must be at least 1")
	}
	if c.Janitor.Enabled && c.Janitor.Retention <= 0 {
		return fmt.Errorf("janitor.retention must be positive")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/marmos91/nsfs/pkg/namespace"
)

// Config represents the complete nsfs configuration.
//
// This structure captures all configurable aspects of an nsfs process:
//   - Logging configuration
//   - Mount point and initial working directory
//   - Identity stamped on created nodes
//   - Session settings (descriptor numbering)
//   - Metadata store selection and configuration (store-specific)
//   - Content store selection and configuration (store-specific)
//   - Dentry cache and metrics
//
// Configuration sources (in order of precedence):
//  1. Environment variables (NSFS_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., content.filesystem,
// content.s3) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Mount places the namespace in the host directory tree
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Identity owns every node created by this process
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Session configures client sessions
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Content specifies the content store type and type-specific configuration
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Cache configures the namespace dentry cache
	Cache namespace.DentryCacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MountConfig places the namespace in the host directory tree.
type MountConfig struct {
	// Dir is the absolute host directory where the namespace is visible
	Dir string `mapstructure:"dir" yaml:"dir" validate:"required,startswith=/"`

	// Cwd is the initial working directory of new sessions (default: Dir)
	Cwd string `mapstructure:"cwd" yaml:"cwd" validate:"omitempty,startswith=/"`
}

// IdentityConfig is the owner recorded on created nodes.
type IdentityConfig struct {
	UID uint32 `mapstructure:"uid" yaml:"uid"`
	GID uint32 `mapstructure:"gid" yaml:"gid"`

	// RootMode is the permission mode of the namespace root (e.g., 0755)
	RootMode uint32 `mapstructure:"root_mode" yaml:"root_mode" validate:"lte=4095"` // 4095 = 07777
}

// SessionConfig configures client sessions.
type SessionConfig struct {
	// FDBase is the lowest descriptor number handed out
	FDBase int `mapstructure:"fd_base" yaml:"fd_base" validate:"gte=0"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// ContentConfig specifies content store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port serving /metrics and /healthz
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NSFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use NSFS_ prefix and underscores
	// Example: NSFS_LOGGING_LEVEL=DEBUG, NSFS_MOUNT_DIR=/mnt/nsfs
	v.SetEnvPrefix("NSFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about; bind the
	// scalar keys so they can be set from the environment without a file.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("cache.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/nsfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the scalar keys that may be set purely from the environment.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"mount.dir",
	"mount.cwd",
	"identity.uid",
	"identity.gid",
	"session.fd_base",
	"metadata.type",
	"content.type",
	"cache.enabled",
	"cache.ttl",
	"cache.max_entries",
	"metrics.enabled",
	"metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nsfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "nsfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

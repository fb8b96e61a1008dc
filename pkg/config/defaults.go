package config

import (
	"strings"
	"time"

	"github.com/marmos91/nsfs/pkg/namespace"
	"github.com/marmos91/nsfs/pkg/openfile"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMountDefaults(&cfg.Mount)
	applyIdentityDefaults(&cfg.Identity)
	applySessionDefaults(&cfg.Session)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyCacheDefaults(&cfg.Cache)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.Dir == "" {
		cfg.Dir = "/tmp/nsfs"
	}
	// Cwd defaults to the mount directory when the session starts
}

func applyIdentityDefaults(cfg *IdentityConfig) {
	if cfg.RootMode == 0 {
		cfg.RootMode = 0755
	}
	// UID and GID default to 0 (root)
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.FDBase == 0 {
		cfg.FDBase = openfile.DefaultBase
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/nsfs-metadata"
	}
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/nsfs-content"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = "nsfs/"
	}
}

// applyCacheDefaults sets dentry cache sizing defaults. Enabled is a
// boolean whose zero value is meaningful, so its default (true) is set on
// the viper instance in Load and in GetDefaultConfig.
func applyCacheDefaults(cfg *namespace.DentryCacheConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = time.Second
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 16384
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Cache: namespace.DentryCacheConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

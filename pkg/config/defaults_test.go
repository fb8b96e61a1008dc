package config

import (
	"testing"
	"time"

	"github.com/marmos91/nsfs/pkg/openfile"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_MountAndIdentity(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Mount.Dir != "/tmp/nsfs" {
		t.Errorf("Expected default mount dir '/tmp/nsfs', got %q", cfg.Mount.Dir)
	}
	if cfg.Mount.Cwd != "" {
		t.Errorf("Expected cwd to stay empty, got %q", cfg.Mount.Cwd)
	}
	if cfg.Identity.RootMode != 0755 {
		t.Errorf("Expected default root mode 0755, got %o", cfg.Identity.RootMode)
	}
	if cfg.Session.FDBase != openfile.DefaultBase {
		t.Errorf("Expected default fd base %d, got %d", openfile.DefaultBase, cfg.Session.FDBase)
	}
}

func TestApplyDefaults_Stores(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Metadata.Badger["db_path"] != "/tmp/nsfs-metadata" {
		t.Errorf("Expected default badger db_path, got %v", cfg.Metadata.Badger["db_path"])
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected default content type 'memory', got %q", cfg.Content.Type)
	}
	if cfg.Content.Filesystem["path"] != "/tmp/nsfs-content" {
		t.Errorf("Expected default filesystem path, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Content.S3["region"] != "us-east-1" {
		t.Errorf("Expected default S3 region, got %v", cfg.Content.S3["region"])
	}
	if cfg.Content.S3["key_prefix"] != "nsfs/" {
		t.Errorf("Expected default S3 key prefix, got %v", cfg.Content.S3["key_prefix"])
	}
}

func TestApplyDefaults_CacheAndMetrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Cache.TTL != time.Second {
		t.Errorf("Expected default cache TTL 1s, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 16384 {
		t.Errorf("Expected default max entries 16384, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "WARN", Format: "json", Output: "/var/log/nsfs.log"},
		Mount:   MountConfig{Dir: "/mnt/data", Cwd: "/mnt/data/work"},
		Identity: IdentityConfig{
			UID:      1000,
			GID:      1000,
			RootMode: 0700,
		},
		Session: SessionConfig{FDBase: 1000},
		Metadata: MetadataConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": "/data/meta"},
		},
		Content: ContentConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": "/data/content"},
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9500},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "/var/log/nsfs.log" {
		t.Errorf("Logging overridden: %+v", cfg.Logging)
	}
	if cfg.Mount.Dir != "/mnt/data" || cfg.Mount.Cwd != "/mnt/data/work" {
		t.Errorf("Mount overridden: %+v", cfg.Mount)
	}
	if cfg.Identity.RootMode != 0700 || cfg.Identity.UID != 1000 {
		t.Errorf("Identity overridden: %+v", cfg.Identity)
	}
	if cfg.Session.FDBase != 1000 {
		t.Errorf("Expected fd base 1000, got %d", cfg.Session.FDBase)
	}
	if cfg.Metadata.Badger["db_path"] != "/data/meta" {
		t.Errorf("Expected badger db_path '/data/meta', got %v", cfg.Metadata.Badger["db_path"])
	}
	if cfg.Content.Filesystem["path"] != "/data/content" {
		t.Errorf("Expected filesystem path '/data/content', got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Metrics.Port != 9500 {
		t.Errorf("Expected metrics port 9500, got %d", cfg.Metrics.Port)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if !cfg.Cache.Enabled {
		t.Error("Expected dentry cache enabled in default config")
	}
}

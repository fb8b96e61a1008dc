package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# nsfs Configuration File",
		"logging:",
		"mount:",
		"identity:",
		"metadata:",
		"content:",
		"cache:",
		"metrics:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfigToPath_ForceOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("modified"), 0600); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if err := InitConfigToPath(configPath, true); err != nil {
		t.Fatalf("Forced InitConfigToPath failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if string(content) == "modified" {
		t.Error("Config file was not overwritten")
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestGenerateYAMLWithComments_ReadableValues(t *testing.T) {
	out, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	text := string(out)
	if !strings.Contains(text, "ttl: 1s") {
		t.Errorf("Expected readable cache TTL, got:\n%s", text)
	}
	if !strings.Contains(text, "# 0755") {
		t.Errorf("Expected octal root mode comment, got:\n%s", text)
	}
	if !strings.Contains(text, "# Metadata store") {
		t.Errorf("Expected section comments, got:\n%s", text)
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config failed to load: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Mount.Dir != defaults.Mount.Dir {
		t.Errorf("Expected mount dir %q, got %q", defaults.Mount.Dir, cfg.Mount.Dir)
	}
	if cfg.Identity.RootMode != 0755 {
		t.Errorf("Expected root mode 0755, got %o", cfg.Identity.RootMode)
	}
	if cfg.Cache.TTL != time.Second {
		t.Errorf("Expected cache TTL 1s, got %v", cfg.Cache.TTL)
	}
	if !cfg.Cache.Enabled {
		t.Error("Expected cache enabled")
	}
	if cfg.Content.S3["key_prefix"] != "nsfs/" {
		t.Errorf("Expected S3 key prefix 'nsfs/', got %v", cfg.Content.S3["key_prefix"])
	}
}

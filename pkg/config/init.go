package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# nsfs Configuration File
#
# Values can be overridden with NSFS_* environment variables,
# e.g. NSFS_LOGGING_LEVEL=DEBUG or NSFS_MOUNT_DIR=/mnt/nsfs.

`

// sectionComments are written above each top-level key of a generated file.
var sectionComments = map[string]string{
	"logging":  "Log output (level: DEBUG, INFO, WARN, ERROR; format: text, json)",
	"mount":    "Host directory where the namespace is visible; paths outside it pass through to the host",
	"identity": "Owner and root permissions of created nodes",
	"session":  "Descriptor numbering for client sessions",
	"metadata": "Metadata store (type: memory, badger)",
	"content":  "Content store (type: memory, filesystem, s3)",
	"cache":    "Dentry cache for path lookups",
	"metrics":  "Prometheus endpoint serving /metrics and /healthz",
}

// InitConfig writes a configuration file with default values to the default
// location. It fails if the file exists unless force is set.
//
// Returns the path of the written file.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath writes a configuration file with default values to
// configPath, creating parent directories as needed.
func InitConfigToPath(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	// The file may carry S3 credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above every section.
func generateYAMLWithComments(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}

		switch key.Value {
		case "cache":
			// yaml encodes durations as nanoseconds; write them readably
			if ttl := mappingValue(value, "ttl"); ttl != nil {
				ttl.Tag = "!!str"
				ttl.Value = cfg.Cache.TTL.String()
			}
		case "identity":
			if mode := mappingValue(value, "root_mode"); mode != nil {
				mode.LineComment = fmt.Sprintf("%#o", cfg.Identity.RootMode)
			}
		}
	}

	body, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return append([]byte(configHeader), body...), nil
}

// mappingValue returns the value node stored under key in a mapping node.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if path.Clean(cfg.Mount.Dir) == "/" {
		return fmt.Errorf("mount.dir: the host root cannot be used as mount directory")
	}

	// Only the selected backend section has to be complete
	switch cfg.Metadata.Type {
	case "badger":
		dbPath, _ := cfg.Metadata.Badger["db_path"].(string)
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		if dbPath == "" && !inMemory {
			return fmt.Errorf("metadata.badger: db_path is required unless in_memory is set")
		}
	}

	switch cfg.Content.Type {
	case "filesystem":
		if p, _ := cfg.Content.Filesystem["path"].(string); p == "" {
			return fmt.Errorf("content.filesystem: path is required")
		}
	case "s3":
		if b, _ := cfg.Content.S3["bucket"].(string); b == "" {
			return fmt.Errorf("content.s3: bucket is required")
		}
		if r, _ := cfg.Content.S3["region"].(string); r == "" {
			return fmt.Errorf("content.s3: region is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

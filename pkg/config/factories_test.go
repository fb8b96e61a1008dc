package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateContentStore_Memory(t *testing.T) {
	store, err := CreateContentStore(context.Background(), &ContentConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("Failed to create memory content store: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
}

func TestCreateContentStore_Filesystem(t *testing.T) {
	cfg := &ContentConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"path": t.TempDir(),
		},
	}

	store, err := CreateContentStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem content store: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	}

	_, err := CreateContentStore(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateContentStore_S3MissingBucket(t *testing.T) {
	cfg := &ContentConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	}

	_, err := CreateContentStore(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &ContentConfig{Type: "tape"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown content store type") {
		t.Errorf("Expected 'unknown content store type' error, got: %v", err)
	}
}

func TestCreateMetadataStore_Memory(t *testing.T) {
	store, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("Failed to create memory metadata store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestCreateMetadataStore_Badger(t *testing.T) {
	cfg := &MetadataConfig{
		Type: "badger",
		Badger: map[string]any{
			"db_path":         filepath.Join(t.TempDir(), "meta"),
			"stats_cache_ttl": "2s",
		},
	}

	store, err := CreateMetadataStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create badger metadata store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestCreateMetadataStore_BadgerMissingPath(t *testing.T) {
	cfg := &MetadataConfig{Type: "badger", Badger: map[string]any{}}

	_, err := CreateMetadataStore(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing db_path")
	}
	if !strings.Contains(err.Error(), "db_path is required") {
		t.Errorf("Expected 'db_path is required' error, got: %v", err)
	}
}

func TestCreateMetadataStore_UnknownType(t *testing.T) {
	_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "etcd"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown metadata store type") {
		t.Errorf("Expected 'unknown metadata store type' error, got: %v", err)
	}
}

func TestCreateContentStore_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir()},
	}
	if _, err := CreateContentStore(ctx, cfg, nil); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}

func TestCreateMetadataStore_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "memory"}, nil); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}

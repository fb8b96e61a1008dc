package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/hostfs"
	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/namespace"
	"github.com/marmos91/nsfs/pkg/posix"
)

// Runtime bundles the file system built from a configuration with its
// metrics components.
type Runtime struct {
	FS      *posix.FileSystem
	Metrics *MetricsResult
}

// CreateFileSystem wires the stores, namespace tree and host file system
// selected by cfg into a ready-to-use posix.FileSystem.
//
// The namespace root is created with the configured identity and mode if
// the metadata store does not hold one yet; persistent stores keep their
// existing root.
//
// On error every store created so far is closed.
func CreateFileSystem(ctx context.Context, cfg *Config) (*Runtime, error) {
	m := InitializeMetrics(cfg)

	metaStore, err := CreateMetadataStore(ctx, &cfg.Metadata, m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	tree := namespace.New(metaStore, namespace.Config{
		Cache:   cfg.Cache,
		Metrics: m.Metadata,
	})
	if err := tree.Init(ctx, cfg.Identity.RootMode, cfg.Identity.UID, cfg.Identity.GID); err != nil {
		_ = tree.Close()
		return nil, fmt.Errorf("failed to initialize namespace root: %w", err)
	}

	contentStore, err := CreateContentStore(ctx, &cfg.Content, m.S3)
	if err != nil {
		_ = tree.Close()
		return nil, fmt.Errorf("failed to create content store: %w", err)
	}

	fsys, err := posix.New(tree, contentStore, hostfs.NewOsHostFS(), posix.Options{
		MountDir:        cfg.Mount.Dir,
		UID:             cfg.Identity.UID,
		GID:             cfg.Identity.GID,
		FDBase:          cfg.Session.FDBase,
		Metrics:         m.POSIX,
		MetadataMetrics: m.Metadata,
	})
	if err != nil {
		closeErr := tree.Close()
		if c, ok := contentStore.(interface{ Close() error }); ok {
			closeErr = errors.Join(closeErr, c.Close())
		}
		if closeErr != nil {
			logger.Warn("Failed to release stores: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to create file system: %w", err)
	}

	if cfg.Metrics.Enabled {
		m.Server = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			Healthcheck: fsys.Healthcheck,
			Status:      fsys.Status,
		})
	}

	logger.Info("File system ready: mount=%s metadata=%s content=%s",
		cfg.Mount.Dir, cfg.Metadata.Type, cfg.Content.Type)

	return &Runtime{FS: fsys, Metrics: m}, nil
}

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/store/content"
	contentFs "github.com/marmos91/nsfs/pkg/store/content/fs"
	contentMemory "github.com/marmos91/nsfs/pkg/store/content/memory"
	contentS3 "github.com/marmos91/nsfs/pkg/store/content/s3"
	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/marmos91/nsfs/pkg/store/metadata/badger"
	"github.com/marmos91/nsfs/pkg/store/metadata/memory"
)

// decodeOptions decodes a type-specific options map into out, accepting
// durations written as strings ("5s", "1m").
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateContentStore creates a content store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/store/content/memory (ephemeral)
//   - "filesystem": Uses pkg/store/content/fs (local filesystem storage)
//   - "s3": Uses pkg/store/content/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Content store configuration
//   - s3Metrics: Optional S3 metrics (nil disables collection)
//
// Returns:
//   - content.ContentStore: Initialized content store
//   - error: Configuration or initialization error
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics contentS3.S3Metrics) (content.ContentStore, error) {
	switch cfg.Type {
	case "memory":
		store, err := contentMemory.NewMemoryContentStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory content store: %w", err)
		}
		return store, nil
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q (supported: memory, filesystem, s3)", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	type FilesystemContentStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemContentStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	return store, nil
}

// s3Options is the content.s3 section of the configuration file.
type s3Options struct {
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	MaxRetries      int           `mapstructure:"max_retries"`
	StatsCacheTTL   time.Duration `mapstructure:"stats_cache_ttl"`
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, s3Metrics contentS3.S3Metrics) (content.ContentStore, error) {
	var storeCfg s3Options
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.S3ContentStoreConfig{
		Client:        client,
		Bucket:        storeCfg.Bucket,
		KeyPrefix:     storeCfg.KeyPrefix,
		StatsCacheTTL: storeCfg.StatsCacheTTL,
		Metrics:       s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the store options.
func newS3Client(ctx context.Context, storeCfg s3Options) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts; the AWS default of 3 gives up too early on
	// MinIO and Localstack under load.
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/store/metadata/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/store/metadata/badger (BadgerDB storage, persistent)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Metadata store configuration
//   - m: Storage metrics for stores that report them (nil disables collection)
//
// Returns:
//   - metadata.MetadataStore: Initialized metadata store
//   - error: Configuration or initialization error
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig, m metrics.MetadataMetrics) (metadata.MetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return memory.NewMemoryMetadataStore(), nil
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger, m)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB-based persistent metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any, m metrics.MetadataMetrics) (metadata.MetadataStore, error) {
	var storeConfig badger.BadgerMetadataStoreConfig
	if err := decodeOptions(options, &storeConfig); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeConfig.DBPath == "" && !storeConfig.InMemory {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}

	storeConfig.Metrics = m

	store, err := badger.NewBadgerMetadataStore(ctx, storeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	return store, nil
}

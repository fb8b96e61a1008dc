// Package s3 implements S3-based content storage.
//
// Each ContentID maps to one object. S3 has no partial writes, so WriteAt
// and Truncate rewrite the whole object; reads use ranged GETs. This suits
// workloads that write files once and read them many times.
package s3

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// S3ContentStore implements ContentStore using Amazon S3 or an S3-compatible
// service (MinIO, Localstack).
//
// Thread Safety:
// The S3 client is safe for concurrent use. A per-object mutex serialises
// read-modify-write cycles on the same ContentID within this process.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   S3Metrics

	// objectLocks serialises rewrites of the same object
	objectLocks sync.Map // map[string]*sync.Mutex

	statsCache struct {
		stats     content.StorageStats
		hasStats  bool
		timestamp time.Time
		ttl       time.Duration
		mu        sync.Mutex
	}
}

// S3ContentStoreConfig contains configuration for S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is prepended to every object key (e.g. "nsfs/")
	KeyPrefix string

	// StatsCacheTTL bounds how long GetStorageStats results are reused.
	// Listing a bucket is expensive. Default: 5 minutes.
	StatsCacheTTL time.Duration

	// Metrics is optional; nil disables collection
	Metrics S3Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist; the constructor verifies access with a
// HeadBucket call.
//
// Parameters:
//   - ctx: Context for the bucket access check
//   - cfg: Store configuration
//
// Returns:
//   - *S3ContentStore: Initialized store
//   - error: Returns error if the bucket is inaccessible or config is invalid
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	store := &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   cfg.Metrics,
	}
	if store.metrics == nil {
		store.metrics = noopMetrics{}
	}

	store.statsCache.ttl = cfg.StatsCacheTTL
	if store.statsCache.ttl == 0 {
		store.statsCache.ttl = 5 * time.Minute
	}

	logger.Debug("Opened S3 content store (bucket=%s, prefix=%s)", cfg.Bucket, cfg.KeyPrefix)
	return store, nil
}

// getObjectKey returns the S3 object key for a given content ID.
func (s *S3ContentStore) getObjectKey(id metadata.ContentID) string {
	return s.keyPrefix + string(id)
}

// lockObject acquires the rewrite lock for key and returns its release func.
func (s *S3ContentStore) lockObject(key string) func() {
	v, _ := s.objectLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// observe records the duration and outcome of an S3 call started at start.
func (s *S3ContentStore) observe(operation string, start time.Time, err error) {
	if isNotFound(err) {
		// A missing object is an expected answer, not a failed call
		err = nil
	}
	s.metrics.ObserveOperation(operation, time.Since(start), err)
}

// invalidateStats drops the cached storage statistics.
func (s *S3ContentStore) invalidateStats() {
	s.statsCache.mu.Lock()
	s.statsCache.hasStats = false
	s.statsCache.mu.Unlock()
}

// isNotFound reports whether err means the object doesn't exist.
//
// GetObject reports NoSuchKey; HeadObject has no body and reports NotFound.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// GetStorageStats lists all objects under the key prefix.
//
// Results are cached for StatsCacheTTL; every write through this store
// invalidates the cache.
func (s *S3ContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.statsCache.mu.Lock()
	defer s.statsCache.mu.Unlock()

	if s.statsCache.hasStats && time.Since(s.statsCache.timestamp) < s.statsCache.ttl {
		s.metrics.RecordStatsCacheHit()
		stats := s.statsCache.stats
		return &stats, nil
	}
	s.metrics.RecordStatsCacheMiss()

	var used, count uint64
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Size != nil {
				used += uint64(*obj.Size)
			}
			count++
		}
	}

	stats := content.NewStorageStats(^uint64(0), used, ^uint64(0), count)
	s.statsCache.stats = *stats
	s.statsCache.hasStats = true
	s.statsCache.timestamp = time.Now()

	return stats, nil
}

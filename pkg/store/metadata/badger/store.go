package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// maxConflictRetries bounds how often a write transaction is retried after
// BadgerDB reports a conflict with a concurrent transaction.
const maxConflictRetries = 8

// BadgerMetadataStore implements metadata.MetadataStore using BadgerDB for persistence.
//
// This implementation provides a persistent namespace backed by BadgerDB,
// a fast embedded key-value store. It is suitable for:
//   - Namespaces that must survive process restarts
//   - Large directories (children are range-scanned, never loaded as one value)
//   - Multi-GB metadata storage requirements
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - ACID transactions: a node and its parent's child entry change atomically
//   - Creation-ordered range scans for directory listings
//
// Thread Safety:
// BadgerDB transactions provide isolation; write transactions that race on
// the same keys are retried on badger.ErrConflict. The namespace tree
// serialises structural changes per directory, so conflicts are rare.
//
// Storage Model:
// See keys.go for the key schema and serialization.go for value encodings.
type BadgerMetadataStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB

	// metrics records low-level storage operations. Never nil.
	metrics metrics.MetadataMetrics

	// closed is set by Close so later calls fail with a StoreError instead
	// of a BadgerDB-specific error.
	closed atomic.Bool

	// statsCache caches filesystem statistics to avoid full database scans.
	// Statistics require decoding every node record; the cache serves
	// repeated statfs calls and is invalidated by every mutation.
	statsCache struct {
		stats     metadata.FilesystemStatistics
		hasStats  bool
		timestamp time.Time
		ttl       time.Duration
		mu        sync.RWMutex
	}
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	// BadgerDB creates multiple files in this directory (value log, LSM tree, etc.)
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk. DBPath is ignored.
	// Used by tests and throwaway harness runs.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// StatsCacheTTL is how long statfs counters may be served from cache
	// (default: 5s)
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`

	// Metrics receives storage operation metrics. nil disables collection.
	Metrics metrics.MetadataMetrics `mapstructure:"-"`
}

// NewBadgerMetadataStore creates a new BadgerDB-based metadata store.
//
// BadgerDB is opened at the configured path and will create the directory if
// it doesn't exist. The returned store is immediately ready for use and safe
// for concurrent access from multiple goroutines.
//
// Parameters:
//   - ctx: Context for cancellation during initialization
//   - config: Configuration including DB path and cache sizes
//
// Returns:
//   - *BadgerMetadataStore: A new store instance ready for use
//   - error: Error if database initialization fails or context is cancelled
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithMemTableSize(16 << 20)
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger metadata store requires db_path")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Namespace workload: frequent small records and prefix scans
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	store := &BadgerMetadataStore{
		db:      db,
		metrics: config.Metrics,
	}
	if store.metrics == nil {
		store.metrics = metrics.NewNoopMetadataMetrics()
	}

	store.statsCache.ttl = config.StatsCacheTTL
	if store.statsCache.ttl == 0 {
		store.statsCache.ttl = 5 * time.Second
	}

	logger.Debug("Opened badger metadata store (in_memory=%v, path=%s)", config.InMemory, config.DBPath)
	return store, nil
}

// Close closes the BadgerDB database and releases all resources.
//
// The close operation waits for all pending transactions to complete and
// flushes all data to disk.
func (s *BadgerMetadataStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}

	return nil
}

// Healthcheck verifies the database is accessible.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	// BadgerDB returns an error if it's closed or corrupted
	err := s.db.View(func(txn *badger.Txn) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}

	return nil
}

// check fails fast for cancelled contexts and closed stores.
func (s *BadgerMetadataStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return &metadata.StoreError{
			Code:    metadata.ErrIOError,
			Message: "metadata store is closed",
		}
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
//
// StoreErrors returned by fn abort the transaction and are returned as-is.
func (s *BadgerMetadataStore) update(operation string, fn func(txn *badger.Txn) error) error {
	start := time.Now()

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		logger.Debug("Badger transaction conflict on %s (attempt %d)", operation, attempt+1)
	}

	s.metrics.RecordStorageOperation(operation, time.Since(start), err)
	if err == nil {
		s.invalidateStats()
	}
	return err
}

// view runs fn in a read-only transaction.
func (s *BadgerMetadataStore) view(operation string, fn func(txn *badger.Txn) error) error {
	start := time.Now()
	err := s.db.View(fn)
	s.metrics.RecordStorageOperation(operation, time.Since(start), err)
	return err
}

// getNode reads and decodes the node record at path within txn.
func getNode(txn *badger.Txn, path string) (*metadata.FileAttr, error) {
	item, err := txn.Get(keyNode(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", path, err)
	}

	var attr *metadata.FileAttr
	err = item.Value(func(val []byte) error {
		var decodeErr error
		attr, decodeErr = decodeNode(val)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// getUint64 reads an 8-byte counter; missing keys read as 0.
func getUint64(txn *badger.Txn, key []byte) (uint64, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var v uint64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		v, decodeErr = decodeUint64(val)
		return decodeErr
	})
	return v, true, err
}

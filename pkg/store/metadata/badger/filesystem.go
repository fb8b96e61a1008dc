package badger

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// GetFilesystemStatistics returns aggregate counters for the namespace.
//
// Computing statistics requires decoding every node record, so results are
// cached for statsCache.ttl. Any successful mutation invalidates the cache.
func (s *BadgerMetadataStore) GetFilesystemStatistics(ctx context.Context) (*metadata.FilesystemStatistics, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.statsCache.mu.RLock()
	if s.statsCache.hasStats && time.Since(s.statsCache.timestamp) < s.statsCache.ttl {
		stats := s.statsCache.stats
		s.statsCache.mu.RUnlock()
		return &stats, nil
	}
	s.statsCache.mu.RUnlock()

	stats := metadata.FilesystemStatistics{}
	err := s.view("scan", func(txn *badger.Txn) error {
		prefix := []byte(prefixNode)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var attr *metadata.FileAttr
			err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				attr, decodeErr = decodeNode(val)
				return decodeErr
			})
			if err != nil {
				return err
			}

			if attr.IsDir() {
				stats.TotalDirectories++
				continue
			}
			stats.TotalFiles++
			if attr.Type == metadata.FileTypeRegular {
				stats.UsedBytes += attr.Size
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.statsCache.mu.Lock()
	s.statsCache.stats = stats
	s.statsCache.hasStats = true
	s.statsCache.timestamp = time.Now()
	s.statsCache.mu.Unlock()

	return &stats, nil
}

func (s *BadgerMetadataStore) invalidateStats() {
	s.statsCache.mu.Lock()
	s.statsCache.hasStats = false
	s.statsCache.mu.Unlock()
}

package memory

import (
	"context"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// GetFilesystemStatistics returns aggregate counters for the namespace.
//
// The in-memory implementation walks every node. Counts are exact at the
// moment the read lock is held.
//
// Thread Safety:
// Acquires a read lock.
func (store *MemoryMetadataStore) GetFilesystemStatistics(ctx context.Context) (*metadata.FilesystemStatistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, errClosed()
	}

	stats := &metadata.FilesystemStatistics{}
	for _, attr := range store.nodes {
		if attr.IsDir() {
			stats.TotalDirectories++
			continue
		}
		stats.TotalFiles++
		if attr.Type == metadata.FileTypeRegular {
			stats.UsedBytes += attr.Size
		}
	}

	return stats, nil
}

package memory

import (
	"context"
	"sync"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// MemoryContentStore implements ContentStore using in-memory storage.
//
// This implementation stores all content in memory using a map. It's designed for:
//   - Testing and development
//   - Harness runs against an in-memory namespace
//   - Temporary/ephemeral storage
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Multiple concurrent readers
// are allowed, but writes are exclusive. Copying data on read/write prevents
// data races with caller-owned buffers.
//
// Memory Management:
// Content is stored sparsely in fixed-size chunks, so memory follows the
// bytes actually written rather than the logical size: truncating a file to
// a petabyte costs nothing until data lands there.
type MemoryContentStore struct {
	// data stores the actual file content keyed by ContentID
	data map[metadata.ContentID]*sparseFile

	// mu protects concurrent access to data map
	mu sync.RWMutex
}

// NewMemoryContentStore creates a new in-memory content store.
//
// Parameters:
//   - ctx: Context for cancellation (checked before initialization)
//
// Returns:
//   - *MemoryContentStore: Initialized store
//   - error: Only returns error if context is cancelled
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data: make(map[metadata.ContentID]*sparseFile),
	}, nil
}

// GetStorageStats returns statistics about the in-memory storage.
//
// Statistics are calculated on-the-fly from the current state:
//   - TotalSize: Unlimited (^uint64(0))
//   - UsedSize: Bytes held by written chunks
//   - AvailableSize: Unlimited (^uint64(0))
//   - ContentCount: Number of content items
func (s *MemoryContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	usedSize := uint64(0)
	for _, f := range s.data {
		usedSize += uint64(f.allocated())
	}

	return content.NewStorageStats(^uint64(0), usedSize, ^uint64(0), uint64(len(s.data))), nil
}

// ReadAt reads len(p) bytes at offset.
func (s *MemoryContentStore) ReadAt(ctx context.Context, id metadata.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[id]
	if !exists {
		return 0, content.ErrContentNotFound
	}

	return f.readAt(p, offset)
}

// GetContentSize returns the size of the content in bytes.
func (s *MemoryContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[id]
	if !exists {
		return 0, content.ErrContentNotFound
	}
	return uint64(f.size), nil
}

// ContentExists reports whether content with the given ID exists.
func (s *MemoryContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[id]
	return exists, nil
}

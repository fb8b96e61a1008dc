// Package content defines the storage interface for file bytes.
//
// The namespace stores only metadata; each regular file references its bytes
// through a metadata.ContentID. A ContentStore maps those IDs to byte ranges
// in memory, on a local filesystem, or in an S3 bucket.
package content

import (
	"context"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// ============================================================================
// ContentStore Interface
// ============================================================================

// ContentStore provides random-access storage for file content.
//
// Content is created implicitly by the first WriteAt or Truncate on an ID.
// Size is tracked by the content store itself; the namespace keeps the
// authoritative logical size in FileAttr.Size and reads past the stored
// content as zeros.
//
// Sparse Semantics:
//   - Writing at offset > size fills the gap with zeros
//   - Truncating to a larger size extends with zeros
//   - Backends may keep gaps as holes rather than allocate them
//   - A range whose end does not fit the backend fails with ErrTooLarge
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same ContentID are serialised by the namespace's
// per-node lock; stores only guarantee that each call is atomic.
type ContentStore interface {
	// ReadAt reads len(p) bytes starting at offset.
	//
	// Follows io.ReaderAt: when fewer than len(p) bytes are available it
	// returns the bytes read and io.EOF.
	//
	// Returns:
	//   - int: Number of bytes copied into p
	//   - error: ErrContentNotFound if content doesn't exist, io.EOF on a
	//     short read, ErrInvalidOffset for a negative offset
	ReadAt(ctx context.Context, id metadata.ContentID, p []byte, offset int64) (int, error)

	// WriteAt writes data at the specified offset, creating the content if
	// needed and zero-filling any gap. Returns ErrInvalidOffset for a
	// negative offset and ErrTooLarge when offset+len(data) overflows.
	WriteAt(ctx context.Context, id metadata.ContentID, data []byte, offset int64) error

	// Truncate changes the size of the content.
	//   - newSize < size: trailing bytes are discarded
	//   - newSize > size: content is extended with zeros
	// Content that doesn't exist is created with newSize zero bytes.
	Truncate(ctx context.Context, id metadata.ContentID, newSize uint64) error

	// Delete removes the content. Deleting non-existent content succeeds.
	Delete(ctx context.Context, id metadata.ContentID) error

	// GetContentSize returns the stored size of the content in bytes.
	//
	// Returns:
	//   - error: ErrContentNotFound if content doesn't exist
	GetContentSize(ctx context.Context, id metadata.ContentID) (uint64, error)

	// ContentExists reports whether content with the given ID exists.
	// Returns (false, nil) for missing content.
	ContentExists(ctx context.Context, id metadata.ContentID) (bool, error)

	// GetStorageStats returns statistics about the content storage.
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// StorageStats contains statistics about content storage.
//
// Different backends may support different fields (unsupported fields
// should be set to 0).
type StorageStats struct {
	// TotalSize is the total storage capacity in bytes.
	// For unbounded backends (memory, S3) this is ^uint64(0).
	TotalSize uint64

	// UsedSize is the sum of all content sizes.
	UsedSize uint64

	// AvailableSize is the remaining available space in bytes.
	AvailableSize uint64

	// ContentCount is the total number of content items stored.
	ContentCount uint64

	// AverageSize is UsedSize / ContentCount, 0 if ContentCount is 0.
	AverageSize uint64
}

// NewStorageStats fills the derived fields of a StorageStats.
func NewStorageStats(total, used, available, count uint64) *StorageStats {
	avg := uint64(0)
	if count > 0 {
		avg = used / count
	}
	return &StorageStats{
		TotalSize:     total,
		UsedSize:      used,
		AvailableSize: available,
		ContentCount:  count,
		AverageSize:   avg,
	}
}

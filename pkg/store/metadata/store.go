package metadata

import (
	"context"
)

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore persists the namespace tree: one record per node, keyed by
// canonical namespace path, plus an ordered child list per directory.
//
// Separation of Concerns:
//
// The metadata store manages namespace structure and attributes but does NOT
// manage file content. File content is stored separately in a content store
// and referenced through FileAttr.ContentID.
//
// Ordering:
//
// ListChildren MUST return children in creation order. Implementations keep
// an append-friendly per-directory list so that inserting a child is O(1)
// amortised and listing N children is O(N).
//
// Locking:
//
// Stores are safe for concurrent use, but they do not serialise multi-step
// operations. The namespace tree (pkg/namespace) holds per-directory and
// per-node locks around every read-modify-write sequence it performs.
//
// Error Handling:
//
// Namespace errors are returned as *StoreError with the appropriate code.
// Infrastructure failures are wrapped with fmt.Errorf and map to EIO.
type MetadataStore interface {
	// GetNode returns a copy of the attributes stored at path.
	//
	// Returns:
	//   - *FileAttr: The node attributes
	//   - error: ErrNotFound if no node exists at path
	GetNode(ctx context.Context, path string) (*FileAttr, error)

	// PutNode creates or updates the node at path.
	//
	// When no node exists at path, the node is created and appended to the
	// end of its parent's child list. The parent must exist and be a
	// directory (ErrNotFound / ErrNotDirectory otherwise). The root "/" is
	// the only node without a parent.
	//
	// When a node already exists, its attributes are replaced in place and
	// its position in the parent's child list is unchanged. Changing the
	// node type of an existing node is rejected with ErrInvalidArgument.
	PutNode(ctx context.Context, path string, attr *FileAttr) error

	// DeleteNode removes the node at path and its entry in the parent's
	// child list.
	//
	// Returns:
	//   - error: ErrNotFound if absent, ErrNotEmpty for a directory that
	//     still has children, ErrBusy for the root
	DeleteNode(ctx context.Context, path string) error

	// ListChildren returns the immediate children of a directory in
	// creation order.
	//
	// Returns:
	//   - []DirEntry: The children (empty, not nil, for an empty directory)
	//   - error: ErrNotFound if absent, ErrNotDirectory for a non-directory
	ListChildren(ctx context.Context, path string) ([]DirEntry, error)

	// HasChildren reports whether a directory has at least one child
	// without enumerating the list.
	HasChildren(ctx context.Context, path string) (bool, error)

	// GetFilesystemStatistics returns aggregate counters for the namespace.
	GetFilesystemStatistics(ctx context.Context) (*FilesystemStatistics, error)

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close releases all resources held by the store.
	// Subsequent calls return an ErrIOError StoreError.
	Close() error
}

// FilesystemStatistics contains aggregate namespace counters, reported
// through statfs.
type FilesystemStatistics struct {
	// TotalFiles is the number of regular files and symlinks
	TotalFiles uint64

	// TotalDirectories is the number of directories, including the root
	TotalDirectories uint64

	// UsedBytes is the sum of all regular file sizes
	UsedBytes uint64
}

// TotalNodes returns the total number of nodes in the namespace.
func (s *FilesystemStatistics) TotalNodes() uint64 {
	return s.TotalFiles + s.TotalDirectories
}

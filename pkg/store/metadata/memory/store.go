package memory

import (
	"sync"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// MemoryMetadataStore implements MetadataStore using in-memory storage.
//
// This implementation provides a fully functional namespace backed by
// in-memory data structures. It is suitable for:
//   - Testing and development environments
//   - Ephemeral namespaces where persistence is not required
//   - Single-process harness runs
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu), making the
// store safe for concurrent access from multiple goroutines. Multi-step
// namespace operations are serialised one level up by the namespace tree's
// per-directory locks, so the coarse lock here is only held for map access.
//
// Storage Model:
//
//  1. Node Metadata (nodes):
//     Maps canonical namespace paths to node attributes. Pointers are stable
//     for the lifetime of the node: updates copy into the existing record.
//
//  2. Directory Hierarchy (children):
//     Maps each directory path to its creation-ordered child list. Every
//     directory node has an entry, even when empty.
//
// Consistency Guarantees:
//   - Every non-root node's parent exists in 'nodes' and is a directory
//   - Every directory in 'nodes' has an entry in 'children'
//   - Every name in a child list corresponds to a node in 'nodes'
type MemoryMetadataStore struct {
	// mu protects all fields in this struct for concurrent access.
	mu sync.RWMutex

	// nodes maps canonical namespace paths to node attributes.
	nodes map[string]*metadata.FileAttr

	// children maps directory paths to their ordered child lists.
	children map[string]*childList

	// closed is set by Close; every later call fails.
	closed bool
}

// NewMemoryMetadataStore creates an empty in-memory namespace.
//
// The store starts without a root node; the namespace tree creates "/" on
// initialisation with PutNode, exactly as it does for persistent stores.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		nodes:    make(map[string]*metadata.FileAttr),
		children: make(map[string]*childList),
	}
}

// Close releases the in-memory maps.
func (store *MemoryMetadataStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true
	store.nodes = nil
	store.children = nil
	return nil
}

func errClosed() error {
	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: "metadata store is closed",
	}
}

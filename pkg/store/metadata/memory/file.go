package memory

import (
	"context"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// GetNode returns a copy of the node attributes stored at path.
//
// Thread Safety:
// Acquires a read lock.
func (store *MemoryMetadataStore) GetNode(ctx context.Context, path string) (*metadata.FileAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, errClosed()
	}

	attr, ok := store.nodes[path]
	if !ok {
		return nil, metadata.NewNotFoundError(path)
	}

	attrCopy := *attr
	return &attrCopy, nil
}

// PutNode creates or updates the node at path.
//
// Creation appends the node to its parent's child list; updates copy into
// the existing record so the position in the list is unchanged.
//
// Thread Safety:
// Acquires a write lock.
func (store *MemoryMetadataStore) PutNode(ctx context.Context, path string, attr *metadata.FileAttr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !metadata.IsCanonicalPath(path) {
		return metadata.NewInvalidArgumentError("path is not canonical", path)
	}
	if attr == nil {
		return metadata.NewInvalidArgumentError("attributes cannot be nil", path)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return errClosed()
	}

	// ========================================================================
	// Update in place
	// ========================================================================

	if existing, ok := store.nodes[path]; ok {
		if existing.Type != attr.Type {
			return metadata.NewInvalidArgumentError("cannot change node type", path)
		}
		*existing = *attr
		if existing.IsDir() {
			existing.Size = 0
		}
		return nil
	}

	// ========================================================================
	// Create
	// ========================================================================

	node := *attr
	if node.IsDir() {
		node.Size = 0
	}

	if path != metadata.RootPath {
		parent, name := metadata.SplitPath(path)

		parentAttr, ok := store.nodes[parent]
		if !ok {
			return metadata.NewNotFoundError(parent)
		}
		if !parentAttr.IsDir() {
			return metadata.NewNotDirectoryError(parent)
		}

		store.children[parent].add(name)
	}

	store.nodes[path] = &node
	if node.IsDir() {
		store.children[path] = newChildList()
	}

	return nil
}

// DeleteNode removes the node at path and unlinks it from its parent.
//
// Thread Safety:
// Acquires a write lock.
func (store *MemoryMetadataStore) DeleteNode(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return errClosed()
	}

	if path == metadata.RootPath {
		return metadata.NewError(metadata.ErrBusy, "cannot remove namespace root", path)
	}

	attr, ok := store.nodes[path]
	if !ok {
		return metadata.NewNotFoundError(path)
	}

	if attr.IsDir() {
		if store.children[path].len() > 0 {
			return metadata.NewNotEmptyError(path)
		}
		delete(store.children, path)
	}

	parent, name := metadata.SplitPath(path)
	if list, ok := store.children[parent]; ok {
		list.remove(name)
	}

	delete(store.nodes, path)
	return nil
}

// ListChildren returns the children of a directory in creation order.
//
// Thread Safety:
// Acquires a read lock for the duration of the snapshot.
func (store *MemoryMetadataStore) ListChildren(ctx context.Context, path string) ([]metadata.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, errClosed()
	}

	attr, ok := store.nodes[path]
	if !ok {
		return nil, metadata.NewNotFoundError(path)
	}
	if !attr.IsDir() {
		return nil, metadata.NewNotDirectoryError(path)
	}

	list := store.children[path]
	entries := make([]metadata.DirEntry, 0, list.len())
	list.each(func(name string) {
		childPath := metadata.JoinPath(path, name)
		entries = append(entries, metadata.DirEntry{
			Name: name,
			Type: store.nodes[childPath].Type,
			ID:   metadata.PathToINode(childPath),
		})
	})

	return entries, nil
}

// HasChildren reports whether a directory has at least one child.
func (store *MemoryMetadataStore) HasChildren(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return false, errClosed()
	}

	attr, ok := store.nodes[path]
	if !ok {
		return false, metadata.NewNotFoundError(path)
	}
	if !attr.IsDir() {
		return false, metadata.NewNotDirectoryError(path)
	}

	return store.children[path].len() > 0, nil
}

// Package namespace implements the nsfs namespace tree on top of a
// metadata.MetadataStore.
//
// The store persists nodes and ordered child lists but does not serialise
// multi-step operations. The Tree adds the locking discipline:
//
//   - one mutex per directory path guards structural changes (inserting or
//     removing a child) and readdir snapshots
//   - one mutex per node path guards size and content mutation
//
// Locks are always taken ancestor before descendant, directory locks before
// node locks, so operations on overlapping paths never deadlock.
package namespace

import (
	"context"
	"time"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// Config configures a Tree.
type Config struct {
	// Cache configures the dentry cache
	Cache DentryCacheConfig

	// Metrics receives operation and cache metrics. nil disables collection.
	Metrics metrics.MetadataMetrics

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// Tree is the shared namespace. It is safe for concurrent use by any number
// of sessions.
type Tree struct {
	store     metadata.MetadataStore
	dirLocks  *lockTable
	nodeLocks *lockTable
	cache     *DentryCache
	metrics   metrics.MetadataMetrics
	now       func() time.Time
}

// New creates a Tree over store. Call Init before first use.
func New(store metadata.MetadataStore, cfg Config) *Tree {
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopMetadataMetrics()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Tree{
		store:     store,
		dirLocks:  newLockTable(),
		nodeLocks: newLockTable(),
		cache:     NewDentryCache(cfg.Cache, m),
		metrics:   m,
		now:       now,
	}
}

// Init creates the root directory if the store doesn't have one yet.
func (t *Tree) Init(ctx context.Context, mode, uid, gid uint32) error {
	unlock := t.dirLocks.lock(metadata.RootPath)
	defer unlock()

	_, err := t.store.GetNode(ctx, metadata.RootPath)
	if err == nil {
		return nil
	}
	if !metadata.IsNotFound(err) {
		return err
	}

	logger.Info("Initialising empty namespace")
	return t.store.PutNode(ctx, metadata.RootPath, metadata.NewDirectoryAttr(mode, uid, gid, t.now()))
}

// Store returns the underlying metadata store.
func (t *Tree) Store() metadata.MetadataStore {
	return t.store
}

// Now returns the tree's clock reading.
func (t *Tree) Now() time.Time {
	return t.now()
}

// Lookup returns the attributes of the node at path.
//
// Returns:
//   - error: ErrNotFound if absent, ErrNotDirectory if an intermediate
//     component is not a directory
func (t *Tree) Lookup(ctx context.Context, path string) (attr *metadata.FileAttr, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("lookup", time.Since(start), err) }()

	if err := checkPath(path); err != nil {
		return nil, err
	}

	if cached, ok := t.cache.Get(path); ok {
		return cached, nil
	}

	gen := t.cache.Generation()
	attr, err = t.store.GetNode(ctx, path)
	if err != nil {
		return nil, t.refineNotFound(ctx, path, err)
	}

	t.cache.Put(path, attr, gen)
	return attr, nil
}

// Mkdir creates a directory at path.
//
// Returns:
//   - error: ErrAlreadyExists if an entry exists, ErrNotFound if the parent
//     is missing, ErrNotDirectory if the parent is not a directory
func (t *Tree) Mkdir(ctx context.Context, path string, mode, uid, gid uint32) (attr *metadata.FileAttr, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("mkdir", time.Since(start), err) }()

	attr = metadata.NewDirectoryAttr(mode, uid, gid, t.now())
	if err := t.insert(ctx, path, attr); err != nil {
		return nil, err
	}
	return attr, nil
}

// Create creates a regular file at path, or returns the existing entry.
//
// When exclusive is set an existing entry fails with ErrAlreadyExists. The
// existence check and the creation happen under the parent's directory
// lock, so two concurrent exclusive creates cannot both succeed.
//
// Returns:
//   - *FileAttr: The created or existing node
//   - bool: true if the node was created by this call
func (t *Tree) Create(ctx context.Context, path string, mode, uid, gid uint32, exclusive bool) (attr *metadata.FileAttr, created bool, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("create", time.Since(start), err) }()

	if err := checkPath(path); err != nil {
		return nil, false, err
	}
	if path == metadata.RootPath {
		if exclusive {
			return nil, false, metadata.NewAlreadyExistsError(path)
		}
		attr, err := t.store.GetNode(ctx, path)
		return attr, false, err
	}

	parent, _ := metadata.SplitPath(path)
	unlock := t.dirLocks.lock(parent)
	defer unlock()

	existing, err := t.store.GetNode(ctx, path)
	switch {
	case err == nil:
		if exclusive {
			return nil, false, metadata.NewAlreadyExistsError(path)
		}
		return existing, false, nil
	case !metadata.IsNotFound(err):
		return nil, false, err
	}

	attr = metadata.NewFileAttr(mode, uid, gid, t.now())
	if err := t.insertLocked(ctx, path, attr); err != nil {
		return nil, false, err
	}
	return attr, true, nil
}

// RemoveKind selects which node types Remove accepts.
type RemoveKind int

const (
	// RemoveDirectory removes an empty directory (rmdir)
	RemoveDirectory RemoveKind = iota

	// RemoveFile removes a non-directory (unlink)
	RemoveFile
)

// Remove deletes the node at path and returns its last attributes.
//
// Returns:
//   - error: ErrNotFound if absent; for RemoveDirectory ErrNotDirectory on
//     a non-directory, ErrBusy for the root, ErrNotEmpty with children; for
//     RemoveFile ErrIsDirectory on a directory
func (t *Tree) Remove(ctx context.Context, path string, kind RemoveKind) (attr *metadata.FileAttr, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("remove", time.Since(start), err) }()

	if err := checkPath(path); err != nil {
		return nil, err
	}

	if path == metadata.RootPath {
		if kind == RemoveFile {
			return nil, metadata.NewIsDirectoryError(path)
		}
		return nil, metadata.NewError(metadata.ErrBusy, "cannot remove the mount root", path)
	}

	parent, _ := metadata.SplitPath(path)
	unlock := t.dirLocks.lock(parent)
	defer unlock()

	attr, err = t.removeLocked(ctx, path, kind)
	if err != nil {
		return nil, err
	}
	t.touchLocked(ctx, parent)

	logger.Debug("Removed %s %s", attr.Type, path)
	return attr, nil
}

// removeLocked deletes path. The caller holds the parent's directory lock;
// the node's own directory and node locks are taken here so no child can be
// inserted and no mutation can land while it is removed.
func (t *Tree) removeLocked(ctx context.Context, path string, kind RemoveKind) (*metadata.FileAttr, error) {
	unlockDir := t.dirLocks.lock(path)
	defer unlockDir()
	unlockNode := t.nodeLocks.lock(path)
	defer unlockNode()

	attr, err := t.store.GetNode(ctx, path)
	if err != nil {
		return nil, t.refineNotFound(ctx, path, err)
	}

	switch kind {
	case RemoveDirectory:
		if !attr.IsDir() {
			return nil, metadata.NewNotDirectoryError(path)
		}
	case RemoveFile:
		if attr.IsDir() {
			return nil, metadata.NewIsDirectoryError(path)
		}
	}

	if err := t.store.DeleteNode(ctx, path); err != nil {
		return nil, err
	}
	t.cache.Invalidate(path)
	return attr, nil
}

// ReadDir returns the immediate children of the directory at path in
// creation order.
//
// The directory lock is held only while the child list is snapshotted.
func (t *Tree) ReadDir(ctx context.Context, path string) (entries []metadata.DirEntry, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("readdir", time.Since(start), err) }()

	if err := checkPath(path); err != nil {
		return nil, err
	}

	unlock := t.dirLocks.lock(path)
	entries, err = t.store.ListChildren(ctx, path)
	unlock()

	if err != nil {
		return nil, t.refineNotFound(ctx, path, err)
	}
	return entries, nil
}

// Mutate runs fn on the node at path under the node lock and stores the
// result.
//
// fn receives a private copy of the attributes and may perform content I/O
// while the lock is held; returning an error aborts without storing. The
// node type must not be changed.
func (t *Tree) Mutate(ctx context.Context, path string, fn func(attr *metadata.FileAttr) error) (attr *metadata.FileAttr, err error) {
	start := time.Now()
	defer func() { t.metrics.RecordOperation("mutate", time.Since(start), err) }()

	if err := checkPath(path); err != nil {
		return nil, err
	}

	unlock := t.nodeLocks.lock(path)
	defer unlock()

	attr, err = t.store.GetNode(ctx, path)
	if err != nil {
		return nil, t.refineNotFound(ctx, path, err)
	}

	if err := fn(attr); err != nil {
		return nil, err
	}

	if err := t.store.PutNode(ctx, path, attr); err != nil {
		return nil, err
	}
	t.cache.Invalidate(path)
	return attr, nil
}

// Statistics returns aggregate namespace counters.
func (t *Tree) Statistics(ctx context.Context) (*metadata.FilesystemStatistics, error) {
	return t.store.GetFilesystemStatistics(ctx)
}

// Healthcheck verifies the backing store.
func (t *Tree) Healthcheck(ctx context.Context) error {
	return t.store.Healthcheck(ctx)
}

// Close closes the backing store.
func (t *Tree) Close() error {
	return t.store.Close()
}

// insert creates path under its parent's directory lock, failing if an
// entry already exists.
func (t *Tree) insert(ctx context.Context, path string, attr *metadata.FileAttr) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if path == metadata.RootPath {
		return metadata.NewAlreadyExistsError(path)
	}

	parent, _ := metadata.SplitPath(path)
	unlock := t.dirLocks.lock(parent)
	defer unlock()

	if _, err := t.store.GetNode(ctx, path); err == nil {
		return metadata.NewAlreadyExistsError(path)
	} else if !metadata.IsNotFound(err) {
		return err
	}

	return t.insertLocked(ctx, path, attr)
}

// insertLocked creates path. The caller holds the parent's directory lock
// and has verified that path is absent.
func (t *Tree) insertLocked(ctx context.Context, path string, attr *metadata.FileAttr) error {
	parent, _ := metadata.SplitPath(path)

	if err := t.store.PutNode(ctx, path, attr); err != nil {
		return err
	}
	t.cache.Invalidate(path)
	t.touchLocked(ctx, parent)

	logger.Debug("Created %s %s", attr.Type, path)
	return nil
}

// touchLocked updates the mtime and ctime of a directory whose child list
// changed. Failure is logged, not returned: the structural change already
// happened.
func (t *Tree) touchLocked(ctx context.Context, dir string) {
	unlock := t.nodeLocks.lock(dir)
	defer unlock()

	attr, err := t.store.GetNode(ctx, dir)
	if err != nil {
		logger.Warn("Failed to read parent %s for timestamp update: %v", dir, err)
		return
	}

	now := t.now()
	attr.Mtime = now
	attr.Ctime = now
	if err := t.store.PutNode(ctx, dir, attr); err != nil {
		logger.Warn("Failed to update timestamps of %s: %v", dir, err)
		return
	}
	t.cache.Invalidate(dir)
}

// refineNotFound turns a not-found error into ErrNotDirectory when the
// nearest existing ancestor of path is not a directory.
func (t *Tree) refineNotFound(ctx context.Context, path string, err error) error {
	if !metadata.IsNotFound(err) {
		return err
	}

	for dir, _ := metadata.SplitPath(path); dir != ""; dir, _ = metadata.SplitPath(dir) {
		attr, getErr := t.store.GetNode(ctx, dir)
		if getErr != nil {
			continue
		}
		if !attr.IsDir() {
			return metadata.NewNotDirectoryError(path)
		}
		break
	}
	return err
}

func checkPath(path string) error {
	if !metadata.IsCanonicalPath(path) {
		return metadata.NewInvalidArgumentError("path is not canonical", path)
	}
	return nil
}

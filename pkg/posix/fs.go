// Package posix implements the POSIX call surface of nsfs.
//
// A FileSystem is shared by every client; each client gets a Session with
// its own working directory and file descriptor table. Paths are classified
// by a pathres.Resolver: Internal paths are served by the namespace tree and
// a content store, External paths are forwarded to the host filesystem.
//
// Every Session method returns an error that is either nil or a unix.Errno,
// so results can be handed straight to errno.NewResult.
package posix

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/hostfs"
	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/namespace"
	"github.com/marmos91/nsfs/pkg/openfile"
	"github.com/marmos91/nsfs/pkg/pathres"
	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// Options configures a FileSystem.
type Options struct {
	// MountDir is the absolute host path where the namespace is visible
	// (default: /tmp/nsfs)
	MountDir string

	// UID and GID own every node created through this FileSystem
	UID uint32
	GID uint32

	// FDBase is the lowest descriptor handed out by sessions. Zero selects
	// openfile.DefaultBase.
	FDBase int

	// Metrics receives per-call metrics. nil disables collection.
	Metrics metrics.POSIXMetrics

	// MetadataMetrics receives the open file gauge. nil disables it.
	MetadataMetrics metrics.MetadataMetrics
}

// DefaultMountDir is used when Options.MountDir is empty.
const DefaultMountDir = "/tmp/nsfs"

// FileSystem is the process-wide state shared by all sessions.
type FileSystem struct {
	tree     *namespace.Tree
	content  content.ContentStore
	host     hostfs.HostFS
	resolver *pathres.Resolver

	uid    uint32
	gid    uint32
	fdBase int

	metrics     metrics.POSIXMetrics
	metaMetrics metrics.MetadataMetrics

	sessions  atomic.Int32
	openFiles atomic.Int64

	// refs tracks how many descriptors reference each content ID, so that
	// unlinking an open file defers deleting its bytes until the last
	// close.
	refs struct {
		mu       sync.Mutex
		open     map[metadata.ContentID]int
		orphaned map[metadata.ContentID]bool
	}

	// unlinkMu is held shared by open from lookup until the content is
	// retained, and exclusively by unlink.
	unlinkMu sync.RWMutex
}

// New creates a FileSystem over an initialised tree.
func New(tree *namespace.Tree, store content.ContentStore, host hostfs.HostFS, opts Options) (*FileSystem, error) {
	if tree == nil || store == nil || host == nil {
		return nil, fmt.Errorf("posix: tree, content store and host filesystem are required")
	}

	mountDir := opts.MountDir
	if mountDir == "" {
		mountDir = DefaultMountDir
	}
	resolver, err := pathres.NewResolver(mountDir)
	if err != nil {
		return nil, err
	}

	fdBase := opts.FDBase
	if fdBase <= 0 {
		fdBase = openfile.DefaultBase
	}

	fsys := &FileSystem{
		tree:        tree,
		content:     store,
		host:        host,
		resolver:    resolver,
		uid:         opts.UID,
		gid:         opts.GID,
		fdBase:      fdBase,
		metrics:     opts.Metrics,
		metaMetrics: opts.MetadataMetrics,
	}
	if fsys.metrics == nil {
		fsys.metrics = metrics.NewNoopPOSIXMetrics()
	}
	if fsys.metaMetrics == nil {
		fsys.metaMetrics = metrics.NewNoopMetadataMetrics()
	}
	fsys.refs.open = make(map[metadata.ContentID]int)
	fsys.refs.orphaned = make(map[metadata.ContentID]bool)

	logger.Info("nsfs mounted at %s", resolver.MountDir())
	return fsys, nil
}

// MountDir returns the canonical mount directory.
func (fsys *FileSystem) MountDir() string {
	return fsys.resolver.MountDir()
}

// Tree returns the namespace tree.
func (fsys *FileSystem) Tree() *namespace.Tree {
	return fsys.tree
}

// Healthcheck verifies the metadata backend.
func (fsys *FileSystem) Healthcheck(ctx context.Context) error {
	return fsys.tree.Healthcheck(ctx)
}

// Status reports namespace totals and session activity.
func (fsys *FileSystem) Status(ctx context.Context) (*metrics.Status, error) {
	stats, err := fsys.tree.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return &metrics.Status{
		MountDir:    fsys.MountDir(),
		Sessions:    int(fsys.sessions.Load()),
		OpenFiles:   fsys.openFiles.Load(),
		Files:       stats.TotalFiles,
		Directories: stats.TotalDirectories,
		UsedBytes:   stats.UsedBytes,
	}, nil
}

// Close closes the metadata backend and, if it has one, the content store.
// Sessions must be closed first.
func (fsys *FileSystem) Close() error {
	err := fsys.tree.Close()
	if c, ok := fsys.content.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// retain records one more descriptor referencing id.
func (fsys *FileSystem) retain(id metadata.ContentID) {
	if id == "" {
		return
	}
	fsys.refs.mu.Lock()
	fsys.refs.open[id]++
	fsys.refs.mu.Unlock()
}

// release drops a descriptor reference and deletes orphaned content once
// nothing references it.
func (fsys *FileSystem) release(ctx context.Context, id metadata.ContentID) error {
	if id == "" {
		return nil
	}

	fsys.refs.mu.Lock()
	fsys.refs.open[id]--
	last := fsys.refs.open[id] <= 0
	orphaned := fsys.refs.orphaned[id]
	if last {
		delete(fsys.refs.open, id)
		delete(fsys.refs.orphaned, id)
	}
	fsys.refs.mu.Unlock()

	if last && orphaned {
		logger.Debug("Deleting content %s of unlinked file on last close", id)
		return fsys.content.Delete(ctx, id)
	}
	return nil
}

// unlink removes the regular file at path. Its content is deleted
// immediately unless a descriptor still references it.
//
// Removing the name and marking the content orphaned happen under unlinkMu,
// so an open that raced with the unlink has either retained the content
// already or no longer finds the name.
func (fsys *FileSystem) unlink(ctx context.Context, path string) error {
	fsys.unlinkMu.Lock()
	attr, err := fsys.tree.Remove(ctx, path, namespace.RemoveFile)
	if err != nil {
		fsys.unlinkMu.Unlock()
		return err
	}
	id := attr.ContentID
	inUse := false
	if id != "" {
		fsys.refs.mu.Lock()
		inUse = fsys.refs.open[id] > 0
		if inUse {
			fsys.refs.orphaned[id] = true
		}
		fsys.refs.mu.Unlock()
	}
	fsys.unlinkMu.Unlock()

	switch {
	case id == "":
	case inUse:
		logger.Debug("Deferring delete of content %s until last close", id)
	default:
		if err := fsys.content.Delete(ctx, id); err != nil {
			// The name is already gone; leaked bytes are not worth failing for.
			logger.Warn("Failed to delete content %s of %s: %v", id, path, err)
		}
	}
	return nil
}

// isOrphaned reports whether id belongs to an unlinked file that is still
// open.
//
// A stale lookup may observe an unlink before it marked the content, so
// this waits for unlinks in flight.
func (fsys *FileSystem) isOrphaned(id metadata.ContentID) bool {
	fsys.unlinkMu.RLock()
	defer fsys.unlinkMu.RUnlock()
	fsys.refs.mu.Lock()
	defer fsys.refs.mu.Unlock()
	return fsys.refs.orphaned[id]
}

func (fsys *FileSystem) addOpenFiles(delta int64) {
	fsys.metaMetrics.SetOpenFiles(fsys.openFiles.Add(delta))
}

// Package fs implements filesystem-based content storage.
//
// Each ContentID is stored as one regular file under a base directory. The
// store works on an afero.Fs so the same code runs against the host
// filesystem and against afero's in-memory filesystem in tests.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// FSContentStore implements ContentStore using a filesystem.
//
// Thread Safety:
// Each call opens, uses and closes its own file handle, so calls for
// different content IDs never share state. Concurrent writes to the same ID
// are serialised by the namespace's per-node lock.
type FSContentStore struct {
	fs       afero.Fs
	basePath string

	// hostPath is the base directory on the host filesystem, used for
	// capacity statistics. Empty when backed by a non-OS afero.Fs.
	hostPath string
}

// NewFSContentStore creates a content store rooted at basePath on the host
// filesystem. The directory is created with permissions 0755 if missing.
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	store, err := NewFSContentStoreWithFs(ctx, afero.NewOsFs(), basePath)
	if err != nil {
		return nil, err
	}
	store.hostPath = basePath
	return store, nil
}

// NewFSContentStoreWithFs creates a content store rooted at basePath on an
// arbitrary afero filesystem.
func NewFSContentStoreWithFs(ctx context.Context, base afero.Fs, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("fs content store requires a base path")
	}

	if err := base.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	logger.Debug("Opened fs content store at %s", basePath)

	return &FSContentStore{
		fs:       afero.NewBasePathFs(base, basePath),
		basePath: basePath,
	}, nil
}

// getFilePath returns the path of the file holding id, relative to the base.
//
// ContentIDs are UUIDs; anything containing a separator is rejected so an ID
// can never escape the base directory.
func (r *FSContentStore) getFilePath(id metadata.ContentID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid content id %q", id)
	}
	return string(filepath.Separator) + name, nil
}

// ReadAt reads len(p) bytes at offset.
func (r *FSContentStore) ReadAt(ctx context.Context, id metadata.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return 0, err
	}

	f, err := r.fs.Open(path)
	if err != nil {
		return 0, mapNotFound(id, err)
	}
	defer f.Close()

	n, err := f.ReadAt(p, offset)
	if errors.Is(err, io.ErrUnexpectedEOF) || (err == nil && n < len(p)) {
		// afero's in-memory files report short reads this way, or not at all
		err = io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	return n, err
}

// WriteAt writes data at offset, creating the file if needed.
//
// The OS fills holes with zeros, which gives sparse semantics for free.
func (r *FSContentStore) WriteAt(ctx context.Context, id metadata.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.CheckRange(offset, len(data)); err != nil {
		return err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	f, err := r.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open content %s: %w", id, err)
	}

	if _, err := f.WriteAt(data, offset); err != nil {
		_ = f.Close()
		return mapNoSpace(id, err)
	}
	return f.Close()
}

// Truncate resizes the file, creating it if needed.
func (r *FSContentStore) Truncate(ctx context.Context, id metadata.ContentID, newSize uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newSize > math.MaxInt64 {
		return fmt.Errorf("truncate to %d: %w", newSize, content.ErrTooLarge)
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	f, err := r.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open content %s: %w", id, err)
	}

	if err := f.Truncate(int64(newSize)); err != nil {
		_ = f.Close()
		return mapNoSpace(id, err)
	}
	return f.Close()
}

// Delete removes the file. Missing content is not an error.
func (r *FSContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return err
	}

	if err := r.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// GetContentSize returns the size of the file.
func (r *FSContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return 0, err
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		return 0, mapNotFound(id, err)
	}
	return uint64(info.Size()), nil
}

// ContentExists reports whether the file exists.
func (r *FSContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := r.getFilePath(id)
	if err != nil {
		return false, err
	}

	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return exists, nil
}

// GetStorageStats scans the base directory for usage and, for host-backed
// stores, asks the kernel for capacity.
//
// The scan is linear in the number of content files.
func (r *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var used, count uint64
	err := afero.Walk(r.fs, string(filepath.Separator), func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			used += uint64(info.Size())
			count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan content directory: %w", err)
	}

	total, available := ^uint64(0), ^uint64(0)
	if r.hostPath != "" {
		var st unix.Statfs_t
		if err := unix.Statfs(r.hostPath, &st); err != nil {
			return nil, fmt.Errorf("statfs %s: %w", r.hostPath, err)
		}
		total = st.Blocks * uint64(st.Bsize)
		available = st.Bavail * uint64(st.Bsize)
	}

	return content.NewStorageStats(total, used, available, count), nil
}

// Close releases resources. File handles are per-call, so there is nothing
// to flush.
func (r *FSContentStore) Close() error {
	return nil
}

func mapNotFound(id metadata.ContentID, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return fmt.Errorf("failed to access content %s: %w", id, err)
}

func mapNoSpace(id metadata.ContentID, err error) error {
	switch {
	case errors.Is(err, unix.ENOSPC):
		return fmt.Errorf("content %s: %w", id, content.ErrStorageFull)
	case errors.Is(err, unix.EFBIG):
		return fmt.Errorf("content %s: %w", id, content.ErrTooLarge)
	}
	return fmt.Errorf("failed to write content %s: %w", id, err)
}

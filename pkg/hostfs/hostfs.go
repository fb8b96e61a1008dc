// Package hostfs forwards operations on paths outside the mount to the host
// filesystem.
//
// nsfs does not reimplement host semantics; it only normalises the few
// checks POSIX requires (rmdir of a file, unlink of a directory) so results
// are identical on the real OS and on afero's in-memory filesystem used in
// tests.
package hostfs

import (
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/internal/logger"
)

// HostFS is the host filesystem delegate for External paths.
//
// All methods return *fs.PathError or unix.Errno values so the caller can
// map them with errno.FromError.
type HostFS interface {
	Stat(name string) (fs.FileInfo, error)
	Mkdir(name string, perm os.FileMode) error
	Rmdir(name string) error
	Unlink(name string) error
	OpenFile(name string, flag int, perm os.FileMode) (afero.File, error)
	Truncate(name string, size int64) error
	ReadDir(name string) ([]fs.FileInfo, error)
	Statfs(name string) (*unix.Statfs_t, error)
}

// AferoHostFS implements HostFS on an afero.Fs.
type AferoHostFS struct {
	fs     afero.Fs
	statfs func(name string, st *unix.Statfs_t) error
}

// NewOsHostFS returns a delegate for the real host filesystem.
func NewOsHostFS() *AferoHostFS {
	return &AferoHostFS{
		fs:     afero.NewOsFs(),
		statfs: unix.Statfs,
	}
}

// NewAferoHostFS wraps an arbitrary afero filesystem. Statfs reports
// synthesised counters computed by walking the filesystem.
func NewAferoHostFS(base afero.Fs) *AferoHostFS {
	h := &AferoHostFS{fs: base}
	h.statfs = h.walkStatfs
	return h
}

// Fs exposes the underlying afero filesystem.
func (h *AferoHostFS) Fs() afero.Fs {
	return h.fs
}

func (h *AferoHostFS) Stat(name string) (fs.FileInfo, error) {
	return h.fs.Stat(name)
}

// Mkdir creates a directory, requiring the parent to exist and be a
// directory.
func (h *AferoHostFS) Mkdir(name string, perm os.FileMode) error {
	if err := h.requireParentDir("mkdir", name); err != nil {
		return err
	}
	if _, err := h.fs.Stat(name); err == nil {
		return pathError("mkdir", name, unix.EEXIST)
	}
	return h.fs.Mkdir(name, perm)
}

// Rmdir removes an empty directory.
func (h *AferoHostFS) Rmdir(name string) error {
	info, err := h.fs.Stat(name)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return pathError("rmdir", name, unix.ENOTDIR)
	}

	entries, err := afero.ReadDir(h.fs, name)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return pathError("rmdir", name, unix.ENOTEMPTY)
	}

	logger.Debug("hostfs: rmdir %s", name)
	return h.fs.Remove(name)
}

// Unlink removes a non-directory entry.
func (h *AferoHostFS) Unlink(name string) error {
	info, err := h.fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathError("unlink", name, unix.EISDIR)
	}
	return h.fs.Remove(name)
}

func (h *AferoHostFS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := h.requireParentDir("open", name); err != nil {
			return nil, err
		}
	}
	return h.fs.OpenFile(name, flag, perm)
}

// Truncate resizes a regular file.
func (h *AferoHostFS) Truncate(name string, size int64) error {
	if size < 0 {
		return pathError("truncate", name, unix.EINVAL)
	}

	info, err := h.fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathError("truncate", name, unix.EISDIR)
	}

	f, err := h.fs.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadDir lists a directory, sorted by name.
func (h *AferoHostFS) ReadDir(name string) ([]fs.FileInfo, error) {
	info, err := h.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, pathError("readdir", name, unix.ENOTDIR)
	}
	return afero.ReadDir(h.fs, name)
}

// Statfs reports filesystem statistics for the filesystem holding name.
func (h *AferoHostFS) Statfs(name string) (*unix.Statfs_t, error) {
	if _, err := h.fs.Stat(name); err != nil {
		return nil, err
	}

	var st unix.Statfs_t
	if err := h.statfs(name, &st); err != nil {
		return nil, pathError("statfs", name, err)
	}
	return &st, nil
}

// walkStatfs fills st with counts for non-OS filesystems.
func (h *AferoHostFS) walkStatfs(_ string, st *unix.Statfs_t) error {
	const blockSize = 4096

	var files, blocks uint64
	err := afero.Walk(h.fs, "/", func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		files++
		if info.Mode().IsRegular() {
			blocks += (uint64(info.Size()) + blockSize - 1) / blockSize
		}
		return nil
	})
	if err != nil {
		return err
	}

	st.Bsize = blockSize
	st.Blocks = blocks
	st.Files = files
	return nil
}

func (h *AferoHostFS) requireParentDir(op, name string) error {
	parent := path.Dir(path.Clean(name))
	info, err := h.fs.Stat(parent)
	if err != nil {
		return pathError(op, name, unix.ENOENT)
	}
	if !info.IsDir() {
		return pathError(op, name, unix.ENOTDIR)
	}
	return nil
}

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

package posix

import (
	"context"
	"errors"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/openfile"
	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// errStale reports that the path behind a descriptor now names a different
// node, or nothing at all.
var errStale = metadata.NewError(metadata.ErrStaleHandle, "file was removed or replaced", "")

// Open opens path and returns a new descriptor positioned at offset 0.
//
// Flags follow open(2): O_CREAT creates a regular file with mode,
// O_CREAT|O_EXCL fails with EEXIST if path exists, O_TRUNC empties a file
// opened for writing, O_DIRECTORY requires a directory. Directories can
// only be opened read-only (EISDIR otherwise).
func (s *Session) Open(ctx context.Context, path string, flags int, mode uint32) (fd int, err error) {
	defer s.call("open", s.begin("open"), &err)

	h, err := s.openHandle(ctx, path, flags, mode)
	if err != nil {
		return -1, err
	}
	return s.files.Insert(h), nil
}

// openHandle opens path without assigning a descriptor. The caller releases
// the handle with closeHandle.
func (s *Session) openHandle(ctx context.Context, path string, flags int, mode uint32) (*openfile.Handle, error) {
	res, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	var h *openfile.Handle
	if res.Internal {
		h, err = s.openInternal(ctx, res.Path, flags, mode)
	} else {
		h, err = s.openHost(res.Path, flags, mode)
	}
	if err != nil {
		return nil, err
	}
	s.fs.addOpenFiles(1)
	return h, nil
}

func (s *Session) openInternal(ctx context.Context, path string, flags int, mode uint32) (*openfile.Handle, error) {
	attr, err := s.lookupAndRetain(ctx, path, flags, mode)
	if err != nil {
		return nil, err
	}

	access := &openfile.Handle{Flags: flags}
	if flags&os.O_TRUNC != 0 && access.Writable() && !attr.IsDir() {
		truncated, err := s.truncateNode(ctx, path, attr.ContentID, 0)
		if err != nil {
			if relErr := s.fs.release(ctx, attr.ContentID); relErr != nil {
				logger.Warn("Failed to release content %s: %v", attr.ContentID, relErr)
			}
			return nil, err
		}
		attr = truncated
	}

	return openfile.NewHandle(path, flags, attr), nil
}

// lookupAndRetain finds (or creates) the node for an open, checks its type
// against flags and retains its content before any unlink can orphan it.
func (s *Session) lookupAndRetain(ctx context.Context, path string, flags int, mode uint32) (*metadata.FileAttr, error) {
	access := &openfile.Handle{Flags: flags}
	writable := access.Writable()

	s.fs.unlinkMu.RLock()
	defer s.fs.unlinkMu.RUnlock()

	var attr *metadata.FileAttr
	var err error
	if flags&os.O_CREATE != 0 {
		attr, _, err = s.fs.tree.Create(ctx, path, mode, s.fs.uid, s.fs.gid, flags&os.O_EXCL != 0)
	} else {
		attr, err = s.fs.tree.Lookup(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	if attr.IsDir() {
		if writable || flags&os.O_CREATE != 0 {
			return nil, unix.EISDIR
		}
	} else if flags&unix.O_DIRECTORY != 0 {
		return nil, unix.ENOTDIR
	}

	s.fs.retain(attr.ContentID)
	return attr, nil
}

func (s *Session) openHost(path string, flags int, mode uint32) (*openfile.Handle, error) {
	info, statErr := s.fs.host.Stat(path)
	if statErr == nil && info.IsDir() {
		access := &openfile.Handle{Flags: flags}
		if access.Writable() || flags&os.O_CREATE != 0 {
			return nil, unix.EISDIR
		}
	}
	if statErr == nil && !info.IsDir() && flags&unix.O_DIRECTORY != 0 {
		return nil, unix.ENOTDIR
	}

	f, err := s.fs.host.OpenFile(path, flags&^unix.O_DIRECTORY, os.FileMode(mode&0o777))
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return openfile.NewHostHandle(path, flags, f, st.IsDir()), nil
}

// Close releases a descriptor.
func (s *Session) Close(ctx context.Context, fd int) (err error) {
	defer s.call("close", s.begin("close"), &err)

	h, err := s.files.Remove(fd)
	if err != nil {
		return err
	}
	return s.closeHandle(ctx, h)
}

// closeHandle releases what a removed handle holds.
func (s *Session) closeHandle(ctx context.Context, h *openfile.Handle) error {
	s.fs.addOpenFiles(-1)
	if !h.Internal {
		if h.Host == nil {
			return nil
		}
		return h.Host.Close()
	}
	return s.fs.release(ctx, h.ContentID)
}

// Read reads up to len(buf) bytes at the descriptor offset and advances it.
// It returns 0 at end of file.
func (s *Session) Read(ctx context.Context, fd int, buf []byte) (n int, err error) {
	defer s.call("read", s.begin("read"), &err)

	h, err := s.readable(fd)
	if err != nil {
		return 0, err
	}

	h.Lock()
	defer h.Unlock()

	n, err = s.readAt(ctx, h, buf, h.Offset())
	if err != nil {
		return 0, err
	}
	h.SetOffset(h.Offset() + int64(n))
	s.recordTransfer("read", "read", len(buf), n)
	return n, nil
}

// Pread reads at offset without moving the descriptor offset.
func (s *Session) Pread(ctx context.Context, fd int, buf []byte, offset int64) (n int, err error) {
	defer s.call("pread", s.begin("pread"), &err)

	if offset < 0 {
		return 0, unix.EINVAL
	}
	h, err := s.readable(fd)
	if err != nil {
		return 0, err
	}

	n, err = s.readAt(ctx, h, buf, offset)
	if err != nil {
		return 0, err
	}
	s.recordTransfer("pread", "read", len(buf), n)
	return n, nil
}

// Write writes buf at the descriptor offset, or at end of file for
// O_APPEND descriptors, and advances the offset past the written bytes.
// A write whose end would pass math.MaxInt64 fails with EFBIG.
func (s *Session) Write(ctx context.Context, fd int, buf []byte) (n int, err error) {
	defer s.call("write", s.begin("write"), &err)

	h, err := s.writable(fd)
	if err != nil {
		return 0, err
	}

	h.Lock()
	defer h.Unlock()

	end, err := s.writeAt(ctx, h, buf, h.Offset(), h.Append())
	if err != nil {
		return 0, err
	}
	h.SetOffset(end)
	s.recordTransfer("write", "write", len(buf), len(buf))
	return len(buf), nil
}

// Pwrite writes buf at offset without moving the descriptor offset.
// O_APPEND is ignored: the data lands at offset.
func (s *Session) Pwrite(ctx context.Context, fd int, buf []byte, offset int64) (n int, err error) {
	defer s.call("pwrite", s.begin("pwrite"), &err)

	if offset < 0 {
		return 0, unix.EINVAL
	}
	h, err := s.writable(fd)
	if err != nil {
		return 0, err
	}

	if _, err := s.writeAt(ctx, h, buf, offset, false); err != nil {
		return 0, err
	}
	s.recordTransfer("pwrite", "write", len(buf), len(buf))
	return len(buf), nil
}

// Lseek repositions the descriptor offset and returns the new offset.
//
// SEEK_SET takes off as is, SEEK_CUR adds it to the current offset and
// SEEK_END adds it to the file size. A negative result, SEEK_DATA, SEEK_HOLE
// or any other whence fails with EINVAL and leaves the offset unchanged.
func (s *Session) Lseek(ctx context.Context, fd int, off int64, whence int) (pos int64, err error) {
	defer s.call("lseek", s.begin("lseek"), &err)

	h, err := s.files.Get(fd)
	if err != nil {
		return -1, err
	}

	h.Lock()
	defer h.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = h.Offset()
	case io.SeekEnd:
		size, err := s.handleSize(ctx, h)
		if err != nil {
			return -1, err
		}
		base = size
	default:
		return -1, unix.EINVAL
	}

	if off > 0 && base > math.MaxInt64-off {
		return -1, unix.EOVERFLOW
	}
	pos = base + off
	if pos < 0 {
		return -1, unix.EINVAL
	}
	h.SetOffset(pos)
	return pos, nil
}

// Truncate sets the size of the file at path to exactly size bytes.
//
// Errors: EINVAL for a negative size, EISDIR for directories, ENOENT.
func (s *Session) Truncate(ctx context.Context, path string, size int64) (err error) {
	defer s.call("truncate", s.begin("truncate"), &err)

	if size < 0 {
		return unix.EINVAL
	}
	res, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !res.Internal {
		return s.fs.host.Truncate(res.Path, size)
	}

	_, err = s.truncateNode(ctx, res.Path, "", uint64(size))
	return err
}

// Ftruncate sets the size of the file behind fd.
//
// Errors: EINVAL for a negative size or a descriptor not open for writing,
// EISDIR for directories, ESTALE if the file was replaced since open.
func (s *Session) Ftruncate(ctx context.Context, fd int, size int64) (err error) {
	defer s.call("ftruncate", s.begin("ftruncate"), &err)

	if size < 0 {
		return unix.EINVAL
	}
	h, err := s.files.Get(fd)
	if err != nil {
		return err
	}
	if h.IsDir() {
		return unix.EISDIR
	}
	if !h.Writable() {
		return unix.EINVAL
	}

	if !h.Internal {
		return h.Host.Truncate(size)
	}

	_, err = s.truncateNode(ctx, h.Path, h.ContentID, uint64(size))
	if isStale(err) {
		if s.fs.isOrphaned(h.ContentID) {
			return s.fs.content.Truncate(ctx, h.ContentID, uint64(size))
		}
		return errStale
	}
	return err
}

// Unlink removes a regular file. The file's bytes are deleted once no
// descriptor references them.
//
// Errors: ENOENT, EISDIR for directories.
func (s *Session) Unlink(ctx context.Context, path string) (err error) {
	defer s.call("unlink", s.begin("unlink"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !res.Internal {
		return s.fs.host.Unlink(res.Path)
	}

	return s.fs.unlink(ctx, res.Path)
}

// Symlink is not supported and always fails with ENOTSUP.
func (s *Session) Symlink(ctx context.Context, target, linkpath string) (err error) {
	defer s.call("symlink", s.begin("symlink"), &err)
	return unix.ENOTSUP
}

// readable returns the handle for fd if it may be read.
func (s *Session) readable(fd int) (*openfile.Handle, error) {
	h, err := s.files.Get(fd)
	if err != nil {
		return nil, err
	}
	if h.IsDir() {
		return nil, unix.EISDIR
	}
	if !h.Readable() {
		return nil, unix.EBADF
	}
	return h, nil
}

// writable returns the handle for fd if it may be written.
func (s *Session) writable(fd int) (*openfile.Handle, error) {
	h, err := s.files.Get(fd)
	if err != nil {
		return nil, err
	}
	if h.IsDir() {
		return nil, unix.EISDIR
	}
	if !h.Writable() {
		return nil, unix.EBADF
	}
	return h, nil
}

// readAt reads from the file behind h at offset.
//
// The namespace size is authoritative: reads stop at it, and ranges the
// content store doesn't have (holes, never-written files) read as zeros.
func (s *Session) readAt(ctx context.Context, h *openfile.Handle, buf []byte, offset int64) (int, error) {
	if !h.Internal {
		n, err := h.Host.ReadAt(buf, offset)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
		}
		return n, err
	}

	size, err := s.handleSize(ctx, h)
	if err != nil {
		return 0, err
	}
	if offset >= size || len(buf) == 0 {
		return 0, nil
	}

	want := int64(len(buf))
	if rest := size - offset; rest < want {
		want = rest
	}
	p := buf[:want]

	n, err := s.fs.content.ReadAt(ctx, h.ContentID, p, offset)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, content.ErrContentNotFound) {
		return 0, err
	}
	clear(p[n:])
	return int(want), nil
}

// writeAt writes buf to the file behind h at offset (or at end of file when
// appending) and returns the offset just past the written data.
func (s *Session) writeAt(ctx context.Context, h *openfile.Handle, buf []byte, offset int64, appendMode bool) (int64, error) {
	if !h.Internal {
		return writeHost(h, buf, offset, appendMode)
	}

	end := offset
	_, err := s.fs.tree.Mutate(ctx, h.Path, func(attr *metadata.FileAttr) error {
		if attr.ContentID != h.ContentID {
			return errStale
		}
		off := offset
		if appendMode {
			off = int64(attr.Size)
		}
		if off > math.MaxInt64-int64(len(buf)) {
			return unix.EFBIG
		}
		end = off + int64(len(buf))
		if len(buf) == 0 {
			return nil
		}
		if err := s.fs.content.WriteAt(ctx, h.ContentID, buf, off); err != nil {
			return err
		}
		if uint64(end) > attr.Size {
			attr.Size = uint64(end)
		}
		now := s.fs.tree.Now()
		attr.Mtime = now
		attr.Ctime = now
		return nil
	})
	if isStale(err) {
		if s.fs.isOrphaned(h.ContentID) {
			return s.writeOrphan(ctx, h, buf, offset, appendMode)
		}
		return 0, errStale
	}
	if err != nil {
		return 0, err
	}
	return end, nil
}

// writeOrphan writes to a file that was unlinked while open. Only the
// content store knows its size now.
func (s *Session) writeOrphan(ctx context.Context, h *openfile.Handle, buf []byte, offset int64, appendMode bool) (int64, error) {
	if appendMode {
		size, err := s.orphanSize(ctx, h.ContentID)
		if err != nil {
			return 0, err
		}
		offset = size
	}
	if offset > math.MaxInt64-int64(len(buf)) {
		return 0, unix.EFBIG
	}
	if len(buf) > 0 {
		if err := s.fs.content.WriteAt(ctx, h.ContentID, buf, offset); err != nil {
			return 0, err
		}
	}
	return offset + int64(len(buf)), nil
}

func writeHost(h *openfile.Handle, buf []byte, offset int64, appendMode bool) (int64, error) {
	if appendMode {
		info, err := h.Host.Stat()
		if err != nil {
			return 0, err
		}
		offset = info.Size()
	}
	if _, err := h.Host.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := h.Host.Write(buf); err != nil {
		return 0, err
	}
	return h.Host.Seek(0, io.SeekCurrent)
}

// handleSize returns the current size of the file behind h.
func (s *Session) handleSize(ctx context.Context, h *openfile.Handle) (int64, error) {
	if !h.Internal {
		if h.Host == nil {
			return 0, nil
		}
		info, err := h.Host.Stat()
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, nil
		}
		return info.Size(), nil
	}

	attr, err := s.handleAttr(ctx, h)
	if isStale(err) && s.fs.isOrphaned(h.ContentID) {
		return s.orphanSize(ctx, h.ContentID)
	}
	if err != nil {
		return 0, err
	}
	return int64(attr.Size), nil
}

// handleAttr returns the attributes of the node h was opened on, or
// ESTALE if the path now names something else.
func (s *Session) handleAttr(ctx context.Context, h *openfile.Handle) (*metadata.FileAttr, error) {
	attr, err := s.fs.tree.Lookup(ctx, h.Path)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, errStale
		}
		return nil, err
	}
	if attr.Type != h.Type || attr.ContentID != h.ContentID {
		return nil, errStale
	}
	return attr, nil
}

func (s *Session) orphanSize(ctx context.Context, id metadata.ContentID) (int64, error) {
	size, err := s.fs.content.GetContentSize(ctx, id)
	if errors.Is(err, content.ErrContentNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

// truncateNode resizes the regular file at path. A non-empty id requires
// the node to still carry that content.
func (s *Session) truncateNode(ctx context.Context, path string, id metadata.ContentID, size uint64) (*metadata.FileAttr, error) {
	return s.fs.tree.Mutate(ctx, path, func(attr *metadata.FileAttr) error {
		if attr.IsDir() {
			return unix.EISDIR
		}
		if id != "" && attr.ContentID != id {
			return errStale
		}
		if attr.Type != metadata.FileTypeRegular {
			return unix.EINVAL
		}
		if err := s.fs.content.Truncate(ctx, attr.ContentID, size); err != nil {
			return err
		}
		attr.Size = size
		now := s.fs.tree.Now()
		attr.Mtime = now
		attr.Ctime = now
		return nil
	})
}

func (s *Session) recordTransfer(op, direction string, requested, transferred int) {
	s.fs.metrics.RecordOperationSize(op, uint64(requested))
	s.fs.metrics.RecordBytesTransferred(op, direction, uint64(transferred))
}

// isStale reports whether err means the node behind a descriptor is gone,
// either detected by the check against the handle or because the path no
// longer exists.
func isStale(err error) bool {
	return metadata.IsCode(err, metadata.ErrStaleHandle) || metadata.IsNotFound(err)
}

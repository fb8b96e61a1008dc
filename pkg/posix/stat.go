package posix

import (
	"context"
	"io/fs"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/pkg/openfile"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

const (
	// blockSize is the preferred I/O size reported by stat and statfs
	blockSize = 4096

	// nameMax is the longest path component reported by statfs
	nameMax = 255

	// unboundedCapacity is the capacity reported for content stores
	// without a limit (memory, S3)
	unboundedCapacity = 1 << 50

	// nsfsMagic identifies the filesystem type in Statfs.Type
	nsfsMagic = 0x6e736673
)

// Stat is the result of stat, fstat and statx.
type Stat struct {
	Ino     uint64    `json:"ino"`
	Mode    uint32    `json:"mode"`
	Nlink   uint32    `json:"nlink"`
	UID     uint32    `json:"uid"`
	GID     uint32    `json:"gid"`
	Size    int64     `json:"size"`
	Blksize int64     `json:"blksize"`
	Blocks  int64     `json:"blocks"`
	Atime   time.Time `json:"atime"`
	Mtime   time.Time `json:"mtime"`
	Ctime   time.Time `json:"ctime"`
}

// IsDir reports whether the stat describes a directory.
func (st *Stat) IsDir() bool {
	return st.Mode&unix.S_IFMT == unix.S_IFDIR
}

// IsRegular reports whether the stat describes a regular file.
func (st *Stat) IsRegular() bool {
	return st.Mode&unix.S_IFMT == unix.S_IFREG
}

// Statfs is the result of statfs.
type Statfs struct {
	Type    int64  `json:"type"`
	Bsize   int64  `json:"bsize"`
	Blocks  uint64 `json:"blocks"`
	Bfree   uint64 `json:"bfree"`
	Bavail  uint64 `json:"bavail"`
	Files   uint64 `json:"files"`
	Ffree   uint64 `json:"ffree"`
	Namelen int64  `json:"namelen"`
}

// Stat returns the attributes of path.
func (s *Session) Stat(ctx context.Context, path string) (st *Stat, err error) {
	defer s.call("stat", s.begin("stat"), &err)
	return s.stat(ctx, path)
}

// Statx returns the same attributes as Stat. The extended fields of
// statx(2) that nsfs tracks are already part of Stat.
func (s *Session) Statx(ctx context.Context, path string) (st *Stat, err error) {
	defer s.call("statx", s.begin("statx"), &err)
	return s.stat(ctx, path)
}

func (s *Session) stat(ctx context.Context, path string) (*Stat, error) {
	res, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if !res.Internal {
		info, err := s.fs.host.Stat(res.Path)
		if err != nil {
			return nil, err
		}
		return statFromHost(info), nil
	}

	attr, err := s.fs.tree.Lookup(ctx, res.Path)
	if err != nil {
		return nil, err
	}
	return statFromAttr(res.Path, attr), nil
}

// Fstat returns the attributes of the file behind fd.
//
// Errors: EBADF, ESTALE if the file was removed or replaced since open
// (unless it was unlinked by this FileSystem and is still open).
func (s *Session) Fstat(ctx context.Context, fd int) (st *Stat, err error) {
	defer s.call("fstat", s.begin("fstat"), &err)

	h, err := s.files.Get(fd)
	if err != nil {
		return nil, err
	}
	if !h.Internal {
		if h.Host == nil {
			info, err := s.fs.host.Stat(h.Path)
			if err != nil {
				return nil, err
			}
			return statFromHost(info), nil
		}
		info, err := h.Host.Stat()
		if err != nil {
			return nil, err
		}
		return statFromHost(info), nil
	}

	attr, err := s.handleAttr(ctx, h)
	if isStale(err) && s.fs.isOrphaned(h.ContentID) {
		return s.orphanStat(ctx, h)
	}
	if err != nil {
		return nil, err
	}
	return statFromAttr(h.Path, attr), nil
}

// orphanStat describes an unlinked file that is still open.
func (s *Session) orphanStat(ctx context.Context, h *openfile.Handle) (*Stat, error) {
	size, err := s.orphanSize(ctx, h.ContentID)
	if err != nil {
		return nil, err
	}
	st := &Stat{
		Ino:     metadata.PathToINode(string(h.ContentID)),
		Mode:    unix.S_IFREG,
		UID:     s.fs.uid,
		GID:     s.fs.gid,
		Size:    size,
		Blksize: blockSize,
		Blocks:  (size + 511) / 512,
	}
	return st, nil
}

// Statfs reports filesystem counters for the filesystem holding path.
//
// Internal paths report namespace counters (files, bytes used) and the
// content store's capacity; External paths forward to the host.
func (s *Session) Statfs(ctx context.Context, path string) (st *Statfs, err error) {
	defer s.call("statfs", s.begin("statfs"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if !res.Internal {
		raw, err := s.fs.host.Statfs(res.Path)
		if err != nil {
			return nil, err
		}
		return &Statfs{
			Type:    int64(raw.Type),
			Bsize:   int64(raw.Bsize),
			Blocks:  raw.Blocks,
			Bfree:   raw.Bfree,
			Bavail:  raw.Bavail,
			Files:   raw.Files,
			Ffree:   raw.Ffree,
			Namelen: int64(raw.Namelen),
		}, nil
	}

	if _, err := s.fs.tree.Lookup(ctx, res.Path); err != nil {
		return nil, err
	}
	ns, err := s.fs.tree.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := s.fs.content.GetStorageStats(ctx)
	if err != nil {
		return nil, err
	}

	used := ns.UsedBytes
	if cs.UsedSize > used {
		used = cs.UsedSize
	}
	usedBlocks := (used + blockSize - 1) / blockSize

	var blocks, avail uint64
	if cs.TotalSize == ^uint64(0) {
		blocks = unboundedCapacity / blockSize
		if usedBlocks > blocks {
			blocks = usedBlocks
		}
		avail = blocks - usedBlocks
	} else {
		blocks = cs.TotalSize / blockSize
		avail = cs.AvailableSize / blockSize
	}

	files := ns.TotalNodes()
	return &Statfs{
		Type:    nsfsMagic,
		Bsize:   blockSize,
		Blocks:  blocks,
		Bfree:   avail,
		Bavail:  avail,
		Files:   files + uint64(1<<32),
		Ffree:   uint64(1 << 32),
		Namelen: nameMax,
	}, nil
}

func statFromAttr(path string, attr *metadata.FileAttr) *Stat {
	mode := attr.Mode & 0o7777
	switch attr.Type {
	case metadata.FileTypeDirectory:
		mode |= unix.S_IFDIR
	case metadata.FileTypeSymlink:
		mode |= unix.S_IFLNK
	default:
		mode |= unix.S_IFREG
	}

	size := int64(attr.Size)
	return &Stat{
		Ino:     metadata.PathToINode(path),
		Mode:    mode,
		Nlink:   attr.Nlink,
		UID:     attr.UID,
		GID:     attr.GID,
		Size:    size,
		Blksize: blockSize,
		Blocks:  (size + 511) / 512,
		Atime:   attr.Atime,
		Mtime:   attr.Mtime,
		Ctime:   attr.Ctime,
	}
}

func statFromHost(info fs.FileInfo) *Stat {
	m := info.Mode()
	mode := uint32(m.Perm())
	switch {
	case m.IsDir():
		mode |= unix.S_IFDIR
	case m&fs.ModeSymlink != 0:
		mode |= unix.S_IFLNK
	case m.IsRegular():
		mode |= unix.S_IFREG
	}
	if m&fs.ModeSetuid != 0 {
		mode |= unix.S_ISUID
	}
	if m&fs.ModeSetgid != 0 {
		mode |= unix.S_ISGID
	}
	if m&fs.ModeSticky != 0 {
		mode |= unix.S_ISVTX
	}

	st := &Stat{
		Ino:     hostIno(info),
		Mode:    mode,
		Nlink:   1,
		Size:    info.Size(),
		Blksize: blockSize,
		Blocks:  (info.Size() + 511) / 512,
		Atime:   info.ModTime(),
		Mtime:   info.ModTime(),
		Ctime:   info.ModTime(),
	}
	if m.IsDir() {
		st.Nlink = 2
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.Nlink = uint32(sys.Nlink)
		st.UID = sys.Uid
		st.GID = sys.Gid
		st.Blksize = int64(sys.Blksize)
		st.Blocks = sys.Blocks
	}
	return st
}

// hostIno returns the host inode number, or 0 when the filesystem doesn't
// expose one (afero's in-memory filesystem).
func hostIno(info fs.FileInfo) uint64 {
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		return sys.Ino
	}
	return 0
}

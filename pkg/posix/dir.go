package posix

import (
	"context"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/pkg/namespace"
	"github.com/marmos91/nsfs/pkg/openfile"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// Dirent is one entry of a directory listing.
type Dirent struct {
	// Name is the entry name (no "." or "..")
	Name string `json:"name"`

	// Type is the d_type code (DT_DIR=4, DT_REG=8, DT_LNK=10, DT_UNKNOWN=0)
	Type uint8 `json:"type"`

	// Ino is the entry's inode number
	Ino uint64 `json:"ino"`
}

// Mkdir creates a directory.
//
// Errors: EEXIST if path exists, ENOENT if the parent is missing, ENOTDIR
// if the parent is not a directory.
func (s *Session) Mkdir(ctx context.Context, path string, mode uint32) (err error) {
	defer s.call("mkdir", s.begin("mkdir"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !res.Internal {
		return s.fs.host.Mkdir(res.Path, os.FileMode(mode&0o777))
	}

	_, err = s.fs.tree.Mkdir(ctx, res.Path, mode, s.fs.uid, s.fs.gid)
	return err
}

// Rmdir removes an empty directory.
//
// Errors: ENOENT, ENOTDIR for non-directories, ENOTEMPTY if the directory
// has children, EBUSY for the mount root.
func (s *Session) Rmdir(ctx context.Context, path string) (err error) {
	defer s.call("rmdir", s.begin("rmdir"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !res.Internal {
		return s.fs.host.Rmdir(res.Path)
	}

	_, err = s.fs.tree.Remove(ctx, res.Path, namespace.RemoveDirectory)
	return err
}

// Readdir lists the immediate children of a directory in creation order.
func (s *Session) Readdir(ctx context.Context, path string) (entries []Dirent, err error) {
	defer s.call("readdir", s.begin("readdir"), &err)
	return s.readdir(ctx, path)
}

func (s *Session) readdir(ctx context.Context, path string) ([]Dirent, error) {
	res, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if !res.Internal {
		return s.hostReaddir(res.Path)
	}

	children, err := s.fs.tree.ReadDir(ctx, res.Path)
	if err != nil {
		return nil, err
	}
	entries := make([]Dirent, 0, len(children))
	for _, c := range children {
		entries = append(entries, Dirent{Name: c.Name, Type: c.DirentType(), Ino: c.ID})
	}
	return entries, nil
}

func (s *Session) hostReaddir(path string) ([]Dirent, error) {
	infos, err := s.fs.host.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Dirent, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Dirent{
			Name: info.Name(),
			Type: hostDirentType(info.Mode()),
			Ino:  hostIno(info),
		})
	}
	return entries, nil
}

// Dir is an open directory stream. The listing is captured when the stream
// is opened; entries created afterwards are not returned.
type Dir struct {
	s *Session
	h *openfile.Handle
}

// FD returns the descriptor backing the stream.
func (d *Dir) FD() int {
	return d.h.FD()
}

// Next returns the next entry, or false once the stream is exhausted.
func (d *Dir) Next() (Dirent, bool) {
	e, ok := d.h.NextEntry()
	if !ok {
		return Dirent{}, false
	}
	return Dirent{Name: e.Name, Type: e.DirentType(), Ino: e.ID}, true
}

// Opendir opens a directory stream.
//
// Errors: ENOENT if path is absent, ENOTDIR if it is not a directory.
func (s *Session) Opendir(ctx context.Context, path string) (d *Dir, err error) {
	defer s.call("opendir", s.begin("opendir"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	var h *openfile.Handle
	var entries []metadata.DirEntry
	if res.Internal {
		attr, err := s.fs.tree.Lookup(ctx, res.Path)
		if err != nil {
			return nil, err
		}
		if !attr.IsDir() {
			return nil, unix.ENOTDIR
		}
		if entries, err = s.fs.tree.ReadDir(ctx, res.Path); err != nil {
			return nil, err
		}
		h = openfile.NewHandle(res.Path, os.O_RDONLY|unix.O_DIRECTORY, attr)
	} else {
		hostEntries, err := s.hostReaddir(res.Path)
		if err != nil {
			return nil, err
		}
		for _, e := range hostEntries {
			entries = append(entries, metadata.DirEntry{Name: e.Name, Type: fileTypeFromDirent(e.Type), ID: e.Ino})
		}
		h = openfile.NewHostHandle(res.Path, os.O_RDONLY|unix.O_DIRECTORY, nil, true)
	}

	h.SetEntries(entries)
	s.files.Insert(h)
	s.fs.addOpenFiles(1)
	return &Dir{s: s, h: h}, nil
}

// Closedir closes a directory stream and releases its descriptor.
func (s *Session) Closedir(ctx context.Context, d *Dir) (err error) {
	defer s.call("closedir", s.begin("closedir"), &err)

	if d == nil || d.s != s {
		return unix.EBADF
	}
	h, err := s.files.Remove(d.h.FD())
	if err != nil {
		return err
	}
	return s.closeHandle(ctx, h)
}

func hostDirentType(mode fs.FileMode) uint8 {
	switch {
	case mode.IsDir():
		return metadata.DTDir
	case mode&fs.ModeSymlink != 0:
		return metadata.DTLnk
	case mode.IsRegular():
		return metadata.DTReg
	default:
		return 0
	}
}

func fileTypeFromDirent(t uint8) metadata.FileType {
	switch t {
	case metadata.DTDir:
		return metadata.FileTypeDirectory
	case metadata.DTLnk:
		return metadata.FileTypeSymlink
	default:
		return metadata.FileTypeRegular
	}
}

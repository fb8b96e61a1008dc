package metadata

import (
	"time"

	"github.com/google/uuid"
)

// FileAttr contains the complete metadata for a namespace node.
//
// A node is either a directory (which may have children) or a regular file
// (which has a size and a ContentID referencing its bytes in a content store).
// Symlink nodes exist only as a type so that directory listings can report
// them; nothing in the namespace creates them.
//
// Time Semantics:
//   - Atime (access time): Updated when file is read
//   - Mtime (modification time): Updated when file content or directory entries change
//   - Ctime (change time): Updated when metadata changes (size, entries)
//
// Timestamps are persisted with nanosecond precision.
type FileAttr struct {
	// Type is the node type (regular, directory, symlink)
	Type FileType `json:"type"`

	// Mode contains the permission bits given at creation (0o7777 max).
	// Type bits are never stored here; they are derived from Type.
	Mode uint32 `json:"mode"`

	// UID is the owner user ID
	UID uint32 `json:"uid"`

	// GID is the owner group ID
	GID uint32 `json:"gid"`

	// Nlink is the hard link count reported by stat.
	// Directories report 2, files report 1. It is passed through, never counted.
	Nlink uint32 `json:"nlink"`

	// Size is the file size in bytes.
	// Directories always report 0.
	Size uint64 `json:"size"`

	// Atime is the last access time
	Atime time.Time `json:"atime"`

	// Mtime is the last modification time
	Mtime time.Time `json:"mtime"`

	// Ctime is the last change time
	Ctime time.Time `json:"ctime"`

	// ContentID is the identifier for retrieving file content from the content store.
	// Empty for directories and symlinks.
	ContentID ContentID `json:"content_id"`

	// LinkTarget is the target path for symbolic links
	// Only valid when Type == FileTypeSymlink
	LinkTarget string `json:"link_target,omitempty"`
}

// IsDir reports whether the node is a directory.
func (a *FileAttr) IsDir() bool {
	return a.Type == FileTypeDirectory
}

// FileType represents the type of a namespace node.
type FileType int

const (
	// FileTypeRegular is a regular file containing data
	FileTypeRegular FileType = iota

	// FileTypeDirectory is a directory (container for other nodes)
	FileTypeDirectory

	// FileTypeSymlink is a symbolic link
	FileTypeSymlink
)

// Directory entry type codes, as reported by readdir(3) in d_type.
const (
	DTDir uint8 = 4
	DTReg uint8 = 8
	DTLnk uint8 = 10
)

func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// DirentType returns the d_type code for the node type.
func (t FileType) DirentType() uint8 {
	switch t {
	case FileTypeDirectory:
		return DTDir
	case FileTypeSymlink:
		return DTLnk
	default:
		return DTReg
	}
}

// ContentID is an identifier for retrieving file content from the content store.
//
// The namespace generates random UUIDs; content stores treat the value as opaque.
type ContentID string

// NewContentID returns a fresh random ContentID.
func NewContentID() ContentID {
	return ContentID(uuid.New().String())
}

// NewDirectoryAttr builds the attributes of a freshly created directory.
func NewDirectoryAttr(mode, uid, gid uint32, now time.Time) *FileAttr {
	return &FileAttr{
		Type:  FileTypeDirectory,
		Mode:  mode & 0o7777,
		UID:   uid,
		GID:   gid,
		Nlink: 2,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// NewFileAttr builds the attributes of a freshly created, empty regular file.
func NewFileAttr(mode, uid, gid uint32, now time.Time) *FileAttr {
	return &FileAttr{
		Type:      FileTypeRegular,
		Mode:      mode & 0o7777,
		UID:       uid,
		GID:       gid,
		Nlink:     1,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		ContentID: NewContentID(),
	}
}

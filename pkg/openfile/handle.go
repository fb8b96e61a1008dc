package openfile

import (
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// Handle is one open file description.
//
// The namespace fields are fixed at open time. The offset is guarded by the
// handle's own mutex; callers that read and then advance it hold Lock for
// the whole sequence.
type Handle struct {
	fd int

	// Path is the namespace path (Internal) or host path (External)
	Path string

	// Internal is false for files opened on the host filesystem
	Internal bool

	// Flags are the open(2) flags
	Flags int

	// Type is the node type at open time
	Type metadata.FileType

	// ContentID identifies the file's bytes. It also detects that the path
	// was removed and re-created since the open.
	ContentID metadata.ContentID

	// Host is the host file for External handles
	Host afero.File

	mu     sync.Mutex
	offset int64

	// entries is the snapshot served by a directory stream
	entries []metadata.DirEntry
	pos     int
}

// NewHandle creates a handle for an internal node.
func NewHandle(path string, flags int, attr *metadata.FileAttr) *Handle {
	return &Handle{
		Path:      path,
		Internal:  true,
		Flags:     flags,
		Type:      attr.Type,
		ContentID: attr.ContentID,
	}
}

// NewHostHandle creates a handle for a host file.
func NewHostHandle(path string, flags int, f afero.File, isDir bool) *Handle {
	t := metadata.FileTypeRegular
	if isDir {
		t = metadata.FileTypeDirectory
	}
	return &Handle{
		Path:  path,
		Flags: flags,
		Type:  t,
		Host:  f,
	}
}

// FD returns the descriptor assigned by Table.Insert.
func (h *Handle) FD() int {
	return h.fd
}

// Lock serialises offset updates on the handle.
func (h *Handle) Lock() { h.mu.Lock() }

// Unlock releases Lock.
func (h *Handle) Unlock() { h.mu.Unlock() }

// Offset returns the current position. The caller holds Lock.
func (h *Handle) Offset() int64 { return h.offset }

// SetOffset moves the position. The caller holds Lock.
func (h *Handle) SetOffset(off int64) { h.offset = off }

// IsDir reports whether the handle refers to a directory.
func (h *Handle) IsDir() bool {
	return h.Type == metadata.FileTypeDirectory
}

// Readable reports whether the access mode allows reading.
func (h *Handle) Readable() bool {
	mode := h.Flags & accessMode
	return mode == os.O_RDONLY || mode == os.O_RDWR
}

// Writable reports whether the access mode allows writing.
func (h *Handle) Writable() bool {
	mode := h.Flags & accessMode
	return mode == os.O_WRONLY || mode == os.O_RDWR
}

// Append reports whether writes are forced to end of file.
func (h *Handle) Append() bool {
	return h.Flags&os.O_APPEND != 0
}

// SetEntries installs the snapshot for a directory stream and rewinds it.
func (h *Handle) SetEntries(entries []metadata.DirEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = entries
	h.pos = 0
}

// NextEntry returns the next entry of a directory stream, or false at the
// end.
func (h *Handle) NextEntry() (metadata.DirEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos >= len(h.entries) {
		return metadata.DirEntry{}, false
	}
	e := h.entries[h.pos]
	h.pos++
	return e, true
}

// accessMode masks the O_RDONLY/O_WRONLY/O_RDWR bits.
const accessMode = os.O_RDONLY | os.O_WRONLY | os.O_RDWR

// Package openfile implements the per-session open file table.
//
// Every open allocates a fresh Handle with its own offset; two opens of the
// same path never share a position. Descriptors are small integers handed
// out lowest-free-first starting at a configurable base (3 by default, past
// stdin/stdout/stderr).
package openfile

import (
	"sort"
	"sync"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// DefaultBase is the first descriptor handed out by a Table.
const DefaultBase = 3

// Table maps descriptors to handles. It is safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	base    int
	handles map[int]*Handle
}

// NewTable creates an empty table. base < 0 selects DefaultBase.
func NewTable(base int) *Table {
	if base < 0 {
		base = DefaultBase
	}
	return &Table{
		base:    base,
		handles: make(map[int]*Handle),
	}
}

// Insert registers h under the lowest free descriptor and returns it.
func (t *Table) Insert(h *Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.base
	for {
		if _, used := t.handles[fd]; !used {
			break
		}
		fd++
	}

	h.fd = fd
	t.handles[fd] = h
	return fd
}

// Get returns the handle for fd.
//
// Returns:
//   - error: ErrInvalidHandle StoreError if fd is not open
func (t *Table) Get(fd int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.handles[fd]
	if !ok {
		return nil, badDescriptor()
	}
	return h, nil
}

// Remove unregisters fd and returns its handle.
func (t *Table) Remove(fd int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.handles[fd]
	if !ok {
		return nil, badDescriptor()
	}
	delete(t.handles, fd)
	return h, nil
}

// Drain removes and returns every handle, ordered by descriptor.
func (t *Table) Drain() []*Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		out = append(out, h)
	}
	clear(t.handles)

	sort.Slice(out, func(i, j int) bool { return out[i].fd < out[j].fd })
	return out
}

// Len returns the number of open descriptors.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func badDescriptor() error {
	return metadata.NewError(metadata.ErrInvalidHandle, "bad file descriptor", "")
}

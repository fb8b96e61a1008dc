package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// WriteAt writes data at the specified offset.
//
// Sparse semantics:
//   - Missing content is created
//   - offset > current size leaves a hole that reads as zeros
//   - offset < current size overwrites in place
//
// Returns ErrTooLarge if offset+len(data) overflows int64. The caller's
// buffer is copied; the store never retains it.
func (s *MemoryContentStore) WriteAt(ctx context.Context, id metadata.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := content.CheckRange(offset, len(data)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.data[id]
	if !ok {
		f = newSparseFile()
		s.data[id] = f
	}
	f.writeAt(data, offset)

	return nil
}

// Truncate resizes content, creating it if it doesn't exist. Growing only
// moves the size; the extension is a hole.
func (s *MemoryContentStore) Truncate(ctx context.Context, id metadata.ContentID, newSize uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if newSize > math.MaxInt64 {
		return fmt.Errorf("truncate to %d: %w", newSize, content.ErrTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.data[id]
	if !ok {
		f = newSparseFile()
		s.data[id] = f
	}
	f.truncate(int64(newSize))

	return nil
}

// Delete removes content from the store. Deleting missing content succeeds.
func (s *MemoryContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

func (f *sparseFile) writeAt(data []byte, offset int64) {
	for done := 0; done < len(data); {
		pos := offset + int64(done)
		idx, within := pos/chunkSize, int(pos%chunkSize)
		span := min(chunkSize-within, len(data)-done)

		chunk := f.chunks[idx]
		if len(chunk) < within+span {
			chunk = grow(chunk, within+span)
		}
		copy(chunk[within:], data[done:done+span])
		f.chunks[idx] = chunk
		done += span
	}

	if end := offset + int64(len(data)); end > f.size {
		f.size = end
	}
}

// truncate sets the size, dropping every byte at or past newSize so that a
// later extension reads zeros.
func (f *sparseFile) truncate(newSize int64) {
	if newSize < f.size {
		for idx, chunk := range f.chunks {
			start := idx * chunkSize
			switch {
			case start >= newSize:
				delete(f.chunks, idx)
			case start+int64(len(chunk)) > newSize:
				keep := int(newSize - start)
				clear(chunk[keep:])
				f.chunks[idx] = chunk[:keep]
			}
		}
	}
	f.size = newSize
}

// grow returns buf extended to size bytes (at most chunkSize), the new
// bytes zeroed.
func grow(buf []byte, size int) []byte {
	if cap(buf) >= size {
		old := len(buf)
		buf = buf[:size]
		clear(buf[old:])
		return buf
	}

	// Amortise sequential appends within a chunk
	newCap := min(max(size, cap(buf)*2), chunkSize)
	next := make([]byte, size, max(newCap, size))
	copy(next, buf)
	return next
}

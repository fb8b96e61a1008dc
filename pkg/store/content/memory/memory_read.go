package memory

import "io"

// chunkSize is the granularity of sparse allocation.
const chunkSize = 64 << 10

// sparseFile holds content as fixed-size chunks keyed by index. Chunks that
// were never written are absent and read as zeros; a chunk may be shorter
// than chunkSize, in which case its missing tail reads as zeros too.
type sparseFile struct {
	size   int64
	chunks map[int64][]byte
}

func newSparseFile() *sparseFile {
	return &sparseFile{chunks: make(map[int64][]byte)}
}

// readAt copies content at offset into p with io.ReaderAt semantics.
func (f *sparseFile) readAt(p []byte, offset int64) (int, error) {
	if offset >= f.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := len(p)
	if rest := f.size - offset; int64(n) > rest {
		n = int(rest)
	}

	for done := 0; done < n; {
		pos := offset + int64(done)
		idx, within := pos/chunkSize, int(pos%chunkSize)
		span := min(chunkSize-within, n-done)

		dst := p[done : done+span]
		copied := 0
		if chunk := f.chunks[idx]; within < len(chunk) {
			copied = copy(dst, chunk[within:])
		}
		clear(dst[copied:])
		done += span
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// allocated returns the number of bytes held by chunks.
func (f *sparseFile) allocated() int64 {
	var total int64
	for _, chunk := range f.chunks {
		total += int64(len(chunk))
	}
	return total
}

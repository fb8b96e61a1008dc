package posix

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/pkg/openfile"
)

// CompareFiles reports whether the first n bytes of two files are
// identical. Both files must hold at least n bytes; a shorter file compares
// unequal.
//
// The files are hashed with BLAKE3 while streaming, so memory use does not
// depend on n.
func (s *Session) CompareFiles(ctx context.Context, pathA, pathB string, n int64) (equal bool, err error) {
	defer s.call("file_compare", s.begin("file_compare"), &err)

	if n < 0 {
		return false, unix.EINVAL
	}

	sumA, lenA, err := s.hashPrefix(ctx, pathA, n)
	if err != nil {
		return false, err
	}
	sumB, lenB, err := s.hashPrefix(ctx, pathB, n)
	if err != nil {
		return false, err
	}

	return lenA == n && lenB == n && bytes.Equal(sumA, sumB), nil
}

// hashPrefix hashes up to n bytes of path and returns the digest and the
// number of bytes hashed.
func (s *Session) hashPrefix(ctx context.Context, path string, n int64) ([]byte, int64, error) {
	h, err := s.openHandle(ctx, path, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = s.closeHandle(ctx, h) }()

	if h.IsDir() {
		return nil, 0, unix.EISDIR
	}

	hasher := blake3.New()
	copied, err := io.CopyN(hasher, &handleReader{ctx: ctx, s: s, h: h}, n)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	return hasher.Sum(nil), copied, nil
}

// handleReader reads sequentially from an open handle without touching its
// descriptor offset.
type handleReader struct {
	ctx context.Context
	s   *Session
	h   *openfile.Handle
	off int64
}

func (r *handleReader) Read(p []byte) (int, error) {
	n, err := r.s.readAt(r.ctx, r.h, p, r.off)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	r.off += int64(n)
	return n, nil
}

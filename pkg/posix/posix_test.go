package posix

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/pkg/errno"
	"github.com/marmos91/nsfs/pkg/hostfs"
	"github.com/marmos91/nsfs/pkg/namespace"
	contentmemory "github.com/marmos91/nsfs/pkg/store/content/memory"
	metamemory "github.com/marmos91/nsfs/pkg/store/metadata/memory"
)

const testMount = "/mnt/nsfs"

type testEnv struct {
	fs      *FileSystem
	s       *Session
	host    afero.Fs
	content *contentmemory.MemoryContentStore
	metrics *recordingMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	tree := namespace.New(metamemory.NewMemoryMetadataStore(), namespace.Config{})
	require.NoError(t, tree.Init(ctx, 0755, 0, 0))

	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	host := afero.NewMemMapFs()
	require.NoError(t, host.MkdirAll("/tmp", 0755))
	require.NoError(t, host.MkdirAll(testMount, 0755))

	rec := newRecordingMetrics()
	fsys, err := New(tree, store, hostfs.NewAferoHostFS(host), Options{
		MountDir: testMount,
		UID:      1000,
		GID:      1000,
		Metrics:  rec,
	})
	require.NoError(t, err)

	s, err := fsys.NewSession("")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.End(ctx)
		_ = fsys.Close()
	})
	return &testEnv{fs: fsys, s: s, host: host, content: store, metrics: rec}
}

// pcgData returns n bytes of the deterministic PCG stream seeded with 42.
func pcgData(n int) []byte {
	r := rand.New(rand.NewPCG(42, 42))
	buf := make([]byte, n+8)
	for i := 0; i < n; i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], r.Uint64())
	}
	return buf[:n]
}

func (e *testEnv) writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	ctx := context.Background()
	fd, err := e.s.Open(ctx, path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	require.NoError(t, err)
	n, err := e.s.Write(ctx, fd, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, e.s.Close(ctx, fd))
}

func (e *testEnv) readFile(t *testing.T, path string) []byte {
	t.Helper()
	ctx := context.Background()
	st, err := e.s.Stat(ctx, path)
	require.NoError(t, err)

	fd, err := e.s.Open(ctx, path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer func() { require.NoError(t, e.s.Close(ctx, fd)) }()

	buf := make([]byte, st.Size+16)
	n, err := e.s.Read(ctx, fd, buf)
	require.NoError(t, err)
	return buf[:n]
}

func direntPairs(entries []Dirent) map[string]uint8 {
	out := make(map[string]uint8, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Type
	}
	return out
}

func TestDirectoryScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	require.NoError(t, s.Mkdir(ctx, testMount+"/top", 0755))
	require.NoError(t, s.Mkdir(ctx, testMount+"/top/dir_a", 0755))
	require.NoError(t, s.Mkdir(ctx, testMount+"/top/dir_b", 0755))
	e.writeFile(t, testMount+"/top/file_a", []byte("a"))
	require.NoError(t, s.Mkdir(ctx, testMount+"/top_plus", 0755))

	entries, err := s.Readdir(ctx, testMount+"/top")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, d := range entries {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"dir_a", "dir_b", "file_a"}, names)
	assert.Equal(t, map[string]uint8{"dir_a": 4, "dir_b": 4, "file_a": 8}, direntPairs(entries))

	entries, err = s.Readdir(ctx, testMount+"/top_plus")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = s.Readdir(ctx, testMount)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint8{"top": 4, "top_plus": 4}, direntPairs(entries))

	assert.ErrorIs(t, s.Mkdir(ctx, testMount+"/top", 0755), unix.EEXIST)
	assert.ErrorIs(t, s.Mkdir(ctx, testMount+"/missing/x", 0755), unix.ENOENT)
	assert.ErrorIs(t, s.Mkdir(ctx, testMount+"/top/file_a/x", 0755), unix.ENOTDIR)

	_, err = s.Readdir(ctx, testMount+"/top/file_a")
	assert.ErrorIs(t, err, unix.ENOTDIR)
	_, err = s.Readdir(ctx, testMount+"/nope")
	assert.ErrorIs(t, err, unix.ENOENT)

	assert.ErrorIs(t, s.Rmdir(ctx, testMount+"/top"), unix.ENOTEMPTY)
	assert.ErrorIs(t, s.Rmdir(ctx, testMount+"/top/file_a"), unix.ENOTDIR)
	assert.ErrorIs(t, s.Rmdir(ctx, testMount+"/nope"), unix.ENOENT)
	assert.ErrorIs(t, s.Rmdir(ctx, testMount), unix.EBUSY)

	require.NoError(t, s.Rmdir(ctx, testMount+"/top/dir_a"))
	_, err = s.Stat(ctx, testMount+"/top/dir_a")
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestOpendir(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	require.NoError(t, s.Mkdir(ctx, testMount+"/d", 0755))
	e.writeFile(t, testMount+"/d/one", nil)
	e.writeFile(t, testMount+"/d/two", nil)

	d, err := s.Opendir(ctx, testMount+"/d")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.FD(), 3)

	// The listing is a snapshot.
	e.writeFile(t, testMount+"/d/three", nil)

	var got []string
	for {
		ent, ok := d.Next()
		if !ok {
			break
		}
		got = append(got, ent.Name)
		assert.Equal(t, uint8(8), ent.Type)
	}
	assert.Equal(t, []string{"one", "two"}, got)
	require.NoError(t, s.Closedir(ctx, d))
	assert.ErrorIs(t, s.Closedir(ctx, d), unix.EBADF)

	_, err = s.Opendir(ctx, testMount+"/d/one")
	assert.ErrorIs(t, err, unix.ENOTDIR)
	_, err = s.Opendir(ctx, testMount+"/nope")
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestOpenFlags(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	_, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	assert.ErrorIs(t, err, unix.ENOENT)

	fd, err := s.Open(ctx, testMount+"/f", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	require.NoError(t, err)
	assert.Equal(t, 3, fd)
	require.NoError(t, s.Close(ctx, fd))

	_, err = s.Open(ctx, testMount+"/f", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	assert.ErrorIs(t, err, unix.EEXIST)

	_, err = s.Open(ctx, testMount+"/f", os.O_RDONLY|unix.O_DIRECTORY, 0)
	assert.ErrorIs(t, err, unix.ENOTDIR)

	require.NoError(t, s.Mkdir(ctx, testMount+"/dir", 0755))
	_, err = s.Open(ctx, testMount+"/dir", os.O_WRONLY, 0)
	assert.ErrorIs(t, err, unix.EISDIR)
	_, err = s.Open(ctx, testMount+"/dir", os.O_RDWR, 0)
	assert.ErrorIs(t, err, unix.EISDIR)

	dfd, err := s.Open(ctx, testMount+"/dir", os.O_RDONLY, 0)
	require.NoError(t, err)
	_, err = s.Read(ctx, dfd, make([]byte, 1))
	assert.ErrorIs(t, err, unix.EISDIR)
	_, err = s.Read(ctx, dfd, nil)
	assert.ErrorIs(t, err, unix.EISDIR)
	_, err = s.Write(ctx, dfd, []byte("x"))
	assert.ErrorIs(t, err, unix.EISDIR)
	require.NoError(t, s.Close(ctx, dfd))

	e.writeFile(t, testMount+"/g", []byte("hello"))
	fd, err = s.Open(ctx, testMount+"/g", os.O_WRONLY|os.O_TRUNC, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, fd))
	st, err := s.Stat(ctx, testMount+"/g")
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size)

	st, err = s.Stat(ctx, testMount+"/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(unix.S_IFREG|0640), st.Mode)
	assert.Equal(t, uint32(1000), st.UID)
}

func TestDescriptorNumbering(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s
	e.writeFile(t, testMount+"/f", nil)

	a, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	b, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, []int{a, b})

	require.NoError(t, s.Close(ctx, a))
	c, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, c)

	assert.ErrorIs(t, s.Close(ctx, 99), unix.EBADF)
	_, err = s.Read(ctx, 99, make([]byte, 1))
	assert.ErrorIs(t, err, unix.EBADF)
	assert.Equal(t, 2, s.OpenFiles())
}

func TestDescriptorBase(t *testing.T) {
	ctx := context.Background()

	tree := namespace.New(metamemory.NewMemoryMetadataStore(), namespace.Config{})
	require.NoError(t, tree.Init(ctx, 0755, 0, 0))
	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	host := afero.NewMemMapFs()
	require.NoError(t, host.MkdirAll(testMount, 0755))

	for _, tc := range []struct {
		name string
		base int
		want int
	}{
		{"zero selects default", 0, 3},
		{"negative selects default", -1, 3},
		{"explicit", 10, 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fsys, err := New(tree, store, hostfs.NewAferoHostFS(host), Options{
				MountDir: testMount,
				FDBase:   tc.base,
			})
			require.NoError(t, err)
			s, err := fsys.NewSession("")
			require.NoError(t, err)
			defer func() { _ = s.End(ctx) }()

			fd, err := s.Open(ctx, testMount+"/f", os.O_CREATE|os.O_RDWR, 0644)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fd)
			require.NoError(t, s.Close(ctx, fd))
		})
	}
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	fd, err := s.Open(ctx, testMount+"/f", os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	n, err := s.Write(ctx, fd, []byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = s.Write(ctx, fd, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pos, err := s.Lseek(ctx, fd, 0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	buf := make([]byte, 64)
	n, err = s.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	n, err = s.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Two opens never share an offset.
	fd2, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	n, err = s.Read(ctx, fd2, buf[:5])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = s.Write(ctx, fd2, []byte("x"))
	assert.ErrorIs(t, err, unix.EBADF)

	wfd, err := s.Open(ctx, testMount+"/f", os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = s.Read(ctx, wfd, buf)
	assert.ErrorIs(t, err, unix.EBADF)

	n, err = s.Pread(ctx, fd, buf[:5], 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
	pos, err = s.Lseek(ctx, fd, 0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(11), pos, "pread must not move the offset")

	_, err = s.Pread(ctx, fd, buf, -1)
	assert.ErrorIs(t, err, unix.EINVAL)

	n, err = s.Pwrite(ctx, wfd, []byte("W"), 6)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "hello World", string(e.readFile(t, testMount+"/f")))

	assert.Equal(t, uint64(12), e.metrics.transferred("write"))
	assert.NotZero(t, e.metrics.transferred("read"))
}

func TestSparseWrite(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	fd, err := s.Open(ctx, testMount+"/sparse", os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	pos, err := s.Lseek(ctx, fd, 10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	_, err = s.Write(ctx, fd, []byte("end"))
	require.NoError(t, err)

	st, err := s.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(13), st.Size)

	buf := make([]byte, 13)
	n, err := s.Pread(ctx, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, append(make([]byte, 10), "end"...), buf)
}

func TestNeverWrittenFileReadsEmpty(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	fd, err := s.Open(ctx, testMount+"/empty", os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	n, err := s.Read(ctx, fd, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Growing with truncate gives zeros without ever writing.
	require.NoError(t, s.Ftruncate(ctx, fd, 4))
	buf := []byte{1, 1, 1, 1}
	n, err = s.Pread(ctx, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s
	e.writeFile(t, testMount+"/log", []byte("one\n"))

	fd, err := s.Open(ctx, testMount+"/log", os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)

	// Another descriptor grows the file in between.
	other, err := s.Open(ctx, testMount+"/log", os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = s.Pwrite(ctx, other, []byte("two\n"), 4)
	require.NoError(t, err)

	_, err = s.Lseek(ctx, fd, 0, io.SeekStart)
	require.NoError(t, err)
	_, err = s.Write(ctx, fd, []byte("three\n"))
	require.NoError(t, err)

	pos, err := s.Lseek(ctx, fd, 0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(14), pos)
	assert.Equal(t, "one\ntwo\nthree\n", string(e.readFile(t, testMount+"/log")))
}

func TestTruncateScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	const full = 16 << 20
	const half = 8 << 20
	data := pcgData(full)

	e.writeFile(t, testMount+"/big", data)
	e.writeFile(t, testMount+"/ref", data[:half])

	st, err := s.Stat(ctx, testMount+"/big")
	require.NoError(t, err)
	assert.Equal(t, int64(full), st.Size)

	assert.ErrorIs(t, s.Truncate(ctx, testMount+"/big", -1), unix.EINVAL)
	st, err = s.Stat(ctx, testMount+"/big")
	require.NoError(t, err)
	assert.Equal(t, int64(full), st.Size, "failed truncate must not change the size")

	require.NoError(t, s.Truncate(ctx, testMount+"/big", half))
	st, err = s.Stat(ctx, testMount+"/big")
	require.NoError(t, err)
	assert.Equal(t, int64(half), st.Size)

	equal, err := s.CompareFiles(ctx, testMount+"/big", testMount+"/ref", half)
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = s.CompareFiles(ctx, testMount+"/big", testMount+"/ref", half+1)
	require.NoError(t, err)
	assert.False(t, equal, "both files are shorter than the compared prefix")

	// Growing zero-fills the tail.
	require.NoError(t, s.Truncate(ctx, testMount+"/big", half+4))
	fd, err := s.Open(ctx, testMount+"/big", os.O_RDONLY, 0)
	require.NoError(t, err)
	tail := []byte{9, 9, 9, 9}
	n, err := s.Pread(ctx, fd, tail, half)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, tail)

	require.NoError(t, s.Mkdir(ctx, testMount+"/d", 0755))
	assert.ErrorIs(t, s.Truncate(ctx, testMount+"/d", 0), unix.EISDIR)
	assert.ErrorIs(t, s.Truncate(ctx, testMount+"/missing", 0), unix.ENOENT)
}

func TestHugeSparseFile(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	fd, err := s.Open(ctx, testMount+"/huge", os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	require.NoError(t, s.Truncate(ctx, testMount+"/huge", 1<<50))

	st, err := s.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<50), st.Size)

	buf := []byte{7, 7, 7, 7}
	n, err := s.Pread(ctx, fd, buf, 1<<40)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)

	pos, err := s.Lseek(ctx, fd, 1<<49, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<49), pos)
	n, err = s.Write(ctx, fd, []byte("mid"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Pread(ctx, fd, buf[:3], 1<<49)
	require.NoError(t, err)
	assert.Equal(t, "mid", string(buf[:n]))

	_, err = s.Pwrite(ctx, fd, []byte("x"), math.MaxInt64)
	assert.ErrorIs(t, err, unix.EFBIG)

	_, err = s.Lseek(ctx, fd, math.MaxInt64, io.SeekStart)
	require.NoError(t, err)
	_, err = s.Write(ctx, fd, []byte("x"))
	assert.ErrorIs(t, err, unix.EFBIG)

	st, err = s.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<50), st.Size, "failed writes leave the size alone")

	stats, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Less(t, stats.UsedSize, uint64(1<<20))
}

func TestFtruncate(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s
	e.writeFile(t, testMount+"/f", []byte("0123456789"))

	fd, err := s.Open(ctx, testMount+"/f", os.O_RDWR, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Ftruncate(ctx, fd, -5), unix.EINVAL)
	require.NoError(t, s.Ftruncate(ctx, fd, 3))
	assert.Equal(t, "012", string(e.readFile(t, testMount+"/f")))

	ro, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Ftruncate(ctx, ro, 0), unix.EINVAL)
	assert.ErrorIs(t, s.Ftruncate(ctx, 77, 0), unix.EBADF)
}

func TestLseek(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s
	e.writeFile(t, testMount+"/f", []byte("0123456789"))

	fd, err := s.Open(ctx, testMount+"/f", os.O_RDONLY, 0)
	require.NoError(t, err)

	pos, err := s.Lseek(ctx, fd, 4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)

	_, err = s.Lseek(ctx, fd, -1, io.SeekStart)
	assert.ErrorIs(t, err, unix.EINVAL)

	pos, err = s.Lseek(ctx, fd, 2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	_, err = s.Lseek(ctx, fd, -7, io.SeekCurrent)
	assert.ErrorIs(t, err, unix.EINVAL)

	pos, err = s.Lseek(ctx, fd, -1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	pos, err = s.Lseek(ctx, fd, 5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(15), pos)

	_, err = s.Lseek(ctx, fd, -11, io.SeekEnd)
	assert.ErrorIs(t, err, unix.EINVAL)

	for _, whence := range []int{unix.SEEK_DATA, unix.SEEK_HOLE, 42} {
		_, err = s.Lseek(ctx, fd, 0, whence)
		assert.ErrorIs(t, err, unix.EINVAL, "whence %d", whence)
	}

	// Failures leave the offset where it was.
	pos, err = s.Lseek(ctx, fd, 0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(15), pos)

	buf := make([]byte, 4)
	n, err := s.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "reading past EOF returns 0")
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	require.NoError(t, s.Mkdir(ctx, testMount+"/d", 0750))
	e.writeFile(t, testMount+"/d/f", []byte("abc"))

	st, err := s.Stat(ctx, testMount+"/d")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.Equal(t, uint32(unix.S_IFDIR|0750), st.Mode)
	assert.Equal(t, uint32(2), st.Nlink)
	assert.Equal(t, int64(0), st.Size)

	st, err = s.Statx(ctx, testMount+"/d/f")
	require.NoError(t, err)
	assert.True(t, st.IsRegular())
	assert.Equal(t, int64(3), st.Size)
	assert.Equal(t, int64(1), st.Blocks)

	other, err := s.Stat(ctx, testMount+"/d")
	require.NoError(t, err)
	assert.NotEqual(t, st.Ino, other.Ino)

	root, err := s.Stat(ctx, testMount)
	require.NoError(t, err)
	assert.True(t, root.IsDir())

	_, err = s.Stat(ctx, testMount+"/d/nope")
	assert.ErrorIs(t, err, unix.ENOENT)
	_, err = s.Stat(ctx, testMount+"/d/f/below")
	assert.ErrorIs(t, err, unix.ENOTDIR)
	_, err = s.Stat(ctx, "")
	assert.ErrorIs(t, err, unix.ENOENT)

	fd, err := s.Open(ctx, testMount+"/d/f", os.O_RDONLY, 0)
	require.NoError(t, err)
	fst, err := s.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, st.Ino, fst.Ino)
	assert.Equal(t, st.Size, fst.Size)
}

func TestStatfs(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	require.NoError(t, s.Mkdir(ctx, testMount+"/d", 0755))
	e.writeFile(t, testMount+"/d/f", make([]byte, 10000))

	st, err := s.Statfs(ctx, testMount+"/d")
	require.NoError(t, err)
	assert.Equal(t, int64(blockSize), st.Bsize)
	assert.Equal(t, uint64(3)+st.Ffree, st.Files)
	assert.Equal(t, st.Blocks-3, st.Bfree, "10000 bytes occupy three blocks")
	assert.Equal(t, int64(nameMax), st.Namelen)

	_, err = s.Statfs(ctx, testMount+"/nope")
	assert.ErrorIs(t, err, unix.ENOENT)

	_, err = s.Statfs(ctx, "/tmp")
	require.NoError(t, err)
}

func TestUnlink(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	e.writeFile(t, testMount+"/gone", []byte("data"))
	st, err := s.Stat(ctx, testMount+"/gone")
	require.NoError(t, err)

	require.NoError(t, s.Unlink(ctx, testMount+"/gone"))
	_, err = s.Stat(ctx, testMount+"/gone")
	assert.ErrorIs(t, err, unix.ENOENT)
	assert.ErrorIs(t, s.Unlink(ctx, testMount+"/gone"), unix.ENOENT)

	stats, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ContentCount)
	assert.NotZero(t, st.Ino)

	require.NoError(t, s.Mkdir(ctx, testMount+"/d", 0755))
	assert.ErrorIs(t, s.Unlink(ctx, testMount+"/d"), unix.EISDIR)
}

func TestUnlinkWhileOpen(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	e.writeFile(t, testMount+"/tmpfile", []byte("still here"))
	fd, err := s.Open(ctx, testMount+"/tmpfile", os.O_RDWR, 0)
	require.NoError(t, err)

	require.NoError(t, s.Unlink(ctx, testMount+"/tmpfile"))

	buf := make([]byte, 32)
	n, err := s.Read(ctx, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(buf[:n]))

	_, err = s.Write(ctx, fd, []byte("!"))
	require.NoError(t, err)
	st, err := s.Fstat(ctx, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(11), st.Size)

	// A new file under the same name is unrelated.
	e.writeFile(t, testMount+"/tmpfile", []byte("new"))
	n, err = s.Pread(ctx, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "still here!", string(buf[:n]))

	stats, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.ContentCount)

	require.NoError(t, s.Close(ctx, fd))
	stats, err = e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ContentCount, "orphaned content is deleted on last close")
	assert.Equal(t, "new", string(e.readFile(t, testMount+"/tmpfile")))
}

func TestUnlinkRacingOpen(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	path := testMount + "/contended"

	writer, err := e.fs.NewSession("")
	require.NoError(t, err)
	defer func() { _ = writer.End(ctx) }()
	remover, err := e.fs.NewSession("")
	require.NoError(t, err)
	defer func() { _ = remover.End(ctx) }()

	const rounds = 500
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < rounds; i++ {
			fd, err := writer.Open(ctx, path, os.O_CREATE|os.O_RDWR, 0644)
			if !assert.NoError(t, err) {
				return
			}
			_, err = writer.Write(ctx, fd, []byte("payload"))
			assert.NoError(t, err, "round %d", i)
			_, err = writer.Fstat(ctx, fd)
			assert.NoError(t, err, "round %d", i)
			assert.NoError(t, writer.Close(ctx, fd))
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := remover.Unlink(ctx, path); err != nil && !errors.Is(err, unix.ENOENT) {
				assert.NoError(t, err)
				return
			}
		}
	}()

	wg.Wait()

	_ = remover.Unlink(ctx, path)
	stats, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ContentCount, "every unlinked file's content is released")
}

func TestStaleDescriptor(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	e.writeFile(t, testMount+"/f", []byte("v1"))
	fd, err := s.Open(ctx, testMount+"/f", os.O_RDWR, 0)
	require.NoError(t, err)

	// Replace the node behind the session's back.
	tree := e.fs.Tree()
	_, err = tree.Remove(ctx, "/f", namespace.RemoveFile)
	require.NoError(t, err)
	_, _, err = tree.Create(ctx, "/f", 0644, 0, 0, true)
	require.NoError(t, err)

	_, err = s.Fstat(ctx, fd)
	assert.ErrorIs(t, err, unix.ESTALE)
	_, err = s.Read(ctx, fd, make([]byte, 2))
	assert.ErrorIs(t, err, unix.ESTALE)
	_, err = s.Write(ctx, fd, []byte("x"))
	assert.ErrorIs(t, err, unix.ESTALE)
	assert.ErrorIs(t, s.Ftruncate(ctx, fd, 0), unix.ESTALE)

	st, err := s.Stat(ctx, testMount+"/f")
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size, "the new file is untouched")
}

func TestChdir(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	assert.Equal(t, testMount, s.Getcwd())

	require.NoError(t, s.Mkdir(ctx, "sub", 0755))
	require.NoError(t, s.Chdir(ctx, "sub"))
	assert.Equal(t, testMount+"/sub", s.Getcwd())

	e.writeFile(t, "rel", []byte("x"))
	_, err := s.Stat(ctx, testMount+"/sub/rel")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Chdir(ctx, "rel"), unix.ENOTDIR)
	assert.ErrorIs(t, s.Chdir(ctx, "missing"), unix.ENOENT)
	assert.Equal(t, testMount+"/sub", s.Getcwd())

	// Leave the mount and come back through the host side.
	require.NoError(t, s.Chdir(ctx, "../../../tmp"))
	assert.Equal(t, "/tmp", s.Getcwd())
	_, err = s.Stat(ctx, "../mnt/nsfs/sub/rel")
	require.NoError(t, err)

	require.NoError(t, s.Chdir(ctx, "/mnt//nsfs/./sub/.."))
	assert.Equal(t, testMount, s.Getcwd())
}

func TestExternalPaths(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s := e.s

	require.NoError(t, s.Mkdir(ctx, "/tmp/out", 0755))
	assert.ErrorIs(t, s.Mkdir(ctx, "/tmp/out", 0755), unix.EEXIST)

	fd, err := s.Open(ctx, "/tmp/out/file", os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = s.Write(ctx, fd, []byte("host data"))
	require.NoError(t, err)
	pos, err := s.Lseek(ctx, fd, 0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	buf := make([]byte, 4)
	n, err := s.Pread(ctx, fd, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
	require.NoError(t, s.Close(ctx, fd))

	raw, err := afero.ReadFile(e.host, "/tmp/out/file")
	require.NoError(t, err)
	assert.Equal(t, "host data", string(raw))

	entries, err := s.Readdir(ctx, "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, map[string]uint8{"file": 8}, direntPairs(entries))

	st, err := s.Stat(ctx, "/tmp/out/file")
	require.NoError(t, err)
	assert.True(t, st.IsRegular())
	assert.Equal(t, int64(9), st.Size)

	require.NoError(t, s.Truncate(ctx, "/tmp/out/file", 4))
	assert.ErrorIs(t, s.Rmdir(ctx, "/tmp/out"), unix.ENOTEMPTY)
	require.NoError(t, s.Unlink(ctx, "/tmp/out/file"))
	require.NoError(t, s.Rmdir(ctx, "/tmp/out"))

	// Nothing leaked into the namespace.
	entries, err = s.Readdir(ctx, testMount)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSymlinkNotSupported(t *testing.T) {
	e := newTestEnv(t)
	err := e.s.Symlink(context.Background(), "target", testMount+"/link")
	assert.ErrorIs(t, err, unix.ENOTSUP)
}

func TestErrorsAreErrnos(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	_, err := e.s.Open(ctx, testMount+"/missing", os.O_RDONLY, 0)
	var en unix.Errno
	require.ErrorAs(t, err, &en)
	assert.Equal(t, unix.ENOENT, en)

	r := errno.NewResult(-1, err)
	assert.Equal(t, int64(-1), r.Retval)
	assert.Equal(t, "ENOENT", r.ErrnoName())

	assert.Equal(t, "ENOENT", e.metrics.lastErrno("open"))
	require.NoError(t, e.s.Mkdir(ctx, testMount+"/ok", 0755))
	assert.Equal(t, "", e.metrics.lastErrno("mkdir"))
	assert.Equal(t, 0, e.metrics.pending())
}

func TestSessionEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	s2, err := e.fs.NewSession(testMount)
	require.NoError(t, err)
	assert.Equal(t, int32(2), e.metrics.sessions())

	e.writeFile(t, testMount+"/f", []byte("x"))
	_, err = s2.Open(ctx, testMount+"/f", os.O_RDWR, 0)
	require.NoError(t, err)
	require.NoError(t, e.s.Unlink(ctx, testMount+"/f"))

	exists, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), exists.ContentCount)

	require.NoError(t, s2.End(ctx))
	require.NoError(t, s2.End(ctx))
	assert.Equal(t, 0, s2.OpenFiles())
	assert.Equal(t, int32(1), e.metrics.sessions())

	stats, err := e.content.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ContentCount)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.writeFile(t, testMount+"/a", []byte("12345"))
	require.NoError(t, e.s.Mkdir(ctx, testMount+"/d", 0755))

	fd, err := e.s.Open(ctx, testMount+"/a", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer func() { _ = e.s.Close(ctx, fd) }()

	st, err := e.fs.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, testMount, st.MountDir)
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, int64(1), st.OpenFiles)
	assert.Equal(t, uint64(1), st.Files)
	assert.Equal(t, uint64(2), st.Directories, "root and /d")
	assert.Equal(t, uint64(5), st.UsedBytes)
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := e.fs.NewSession("")
			if !assert.NoError(t, err) {
				return
			}
			defer func() { _ = s.End(ctx) }()

			name := testMount + "/f" + string(rune('a'+i))
			fd, err := s.Open(ctx, name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
			if !assert.NoError(t, err) {
				return
			}
			_, err = s.Write(ctx, fd, []byte{byte(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := e.s.Readdir(ctx, testMount)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	assert.Equal(t, 0, e.s.OpenFiles())
}

package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newMemHost(t *testing.T) *AferoHostFS {
	t.Helper()
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/tmp", 0755))
	return NewAferoHostFS(base)
}

func TestMkdirRmdir(t *testing.T) {
	h := newMemHost(t)

	require.NoError(t, h.Mkdir("/tmp/d", 0755))
	assert.ErrorIs(t, h.Mkdir("/tmp/d", 0755), unix.EEXIST)
	assert.ErrorIs(t, h.Mkdir("/missing/d", 0755), unix.ENOENT)

	require.NoError(t, afero.WriteFile(h.Fs(), "/tmp/d/f", []byte("x"), 0644))
	assert.ErrorIs(t, h.Rmdir("/tmp/d"), unix.ENOTEMPTY)
	assert.ErrorIs(t, h.Rmdir("/tmp/d/f"), unix.ENOTDIR)
	assert.ErrorIs(t, h.Mkdir("/tmp/d/f/sub", 0755), unix.ENOTDIR)

	require.NoError(t, h.Unlink("/tmp/d/f"))
	require.NoError(t, h.Rmdir("/tmp/d"))

	_, err := h.Stat("/tmp/d")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnlinkDirectory(t *testing.T) {
	h := newMemHost(t)
	assert.ErrorIs(t, h.Unlink("/tmp"), unix.EISDIR)
}

func TestTruncate(t *testing.T) {
	h := newMemHost(t)
	require.NoError(t, afero.WriteFile(h.Fs(), "/tmp/f", []byte("0123456789"), 0644))

	require.NoError(t, h.Truncate("/tmp/f", 4))
	info, err := h.Stat("/tmp/f")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())

	assert.ErrorIs(t, h.Truncate("/tmp/f", -1), unix.EINVAL)
	assert.ErrorIs(t, h.Truncate("/tmp", 0), unix.EISDIR)
}

func TestReadDir(t *testing.T) {
	h := newMemHost(t)
	require.NoError(t, h.Mkdir("/tmp/b", 0755))
	require.NoError(t, afero.WriteFile(h.Fs(), "/tmp/a", nil, 0644))

	entries, err := h.ReadDir("/tmp")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name())
	assert.Equal(t, "b", entries[1].Name())

	_, err = h.ReadDir("/tmp/a")
	assert.ErrorIs(t, err, unix.ENOTDIR)
}

func TestStatfsMem(t *testing.T) {
	h := newMemHost(t)
	require.NoError(t, afero.WriteFile(h.Fs(), "/tmp/f", make([]byte, 5000), 0644))

	st, err := h.Statfs("/tmp")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Blocks)
	assert.NotZero(t, st.Files)

	_, err = h.Statfs("/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOsHostFS(t *testing.T) {
	h := NewOsHostFS()
	dir := t.TempDir()

	sub := filepath.Join(dir, "sub")
	require.NoError(t, h.Mkdir(sub, 0755))

	f, err := h.OpenFile(filepath.Join(sub, "f"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	st, err := h.Statfs(dir)
	require.NoError(t, err)
	assert.NotZero(t, st.Blocks)

	assert.ErrorIs(t, h.Rmdir(sub), unix.ENOTEMPTY)
}

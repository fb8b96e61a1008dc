package fs

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/content"
	contenttesting "github.com/marmos91/nsfs/pkg/store/content/testing"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.ContentStore {
			store, err := NewFSContentStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStoreMemMapFs(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.ContentStore {
			store, err := NewFSContentStoreWithFs(context.Background(), afero.NewMemMapFs(), "/content")
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestFSContentStoreRejectsEscapingIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSContentStoreWithFs(ctx, afero.NewMemMapFs(), "/content")
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "../x", "a/b"} {
		err := store.WriteAt(ctx, metadata.ContentID(id), []byte("x"), 0)
		assert.Error(t, err, "id %q", id)
	}
}

func TestFSContentStoreHostStats(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSContentStore(ctx, t.TempDir())
	require.NoError(t, err)

	stats, err := store.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.NotZero(t, stats.TotalSize)
	assert.NotEqual(t, ^uint64(0), stats.TotalSize)
}

func TestFSContentStoreShortReadReportsEOF(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSContentStoreWithFs(ctx, afero.NewMemMapFs(), "/content")
	require.NoError(t, err)

	id := metadata.ContentID("short")
	require.NoError(t, store.WriteAt(ctx, id, []byte("abc"), 0))

	buf := make([]byte, 8)
	n, err := store.ReadAt(ctx, id, buf, 1)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "bc", string(buf[:n]))
}

package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	storetesting "github.com/marmos91/nsfs/pkg/store/metadata/testing"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{
				InMemory: true,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)

	require.NoError(t, store.PutNode(ctx, "/", storetesting.DefaultDirAttr()))
	require.NoError(t, store.PutNode(ctx, "/b", storetesting.DefaultDirAttr()))
	require.NoError(t, store.PutNode(ctx, "/a", storetesting.DefaultFileAttr()))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.ListChildren(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, metadata.FileTypeDirectory, entries[0].Type)
	assert.Equal(t, "a", entries[1].Name)

	// Sequence numbers continue after reopen
	require.NoError(t, reopened.PutNode(ctx, "/c", storetesting.DefaultFileAttr()))
	entries, err = reopened.ListChildren(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "c", entries[2].Name)
}

func TestNodeRecordRoundTrip(t *testing.T) {
	attr := storetesting.DefaultFileAttr()
	attr.Size = 1 << 40
	attr.LinkTarget = ""

	data, err := encodeNode(attr)
	require.NoError(t, err)

	got, err := decodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, attr.Size, got.Size)
	assert.Equal(t, attr.ContentID, got.ContentID)
	assert.True(t, attr.Ctime.Equal(got.Ctime))
}

func TestChildKeysArePrefixSafe(t *testing.T) {
	top := keyChildPrefix("/top")
	plus := keyChild("/top_plus", 0)
	assert.False(t, len(plus) >= len(top) && string(plus[:len(top)]) == string(top))
}

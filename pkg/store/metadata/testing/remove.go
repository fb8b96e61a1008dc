package testing

import (
	"context"
	"testing"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRemoveTests executes node removal tests
func (suite *StoreTestSuite) RunRemoveTests(t *testing.T) {
	t.Run("RemoveFile", suite.testRemoveFile)
	t.Run("RemoveEmptyDirectory", suite.testRemoveEmptyDirectory)
	t.Run("RemoveNonEmptyDirectory", suite.testRemoveNonEmptyDirectory)
	t.Run("RemoveMissing", suite.testRemoveMissing)
	t.Run("RemoveRoot", suite.testRemoveRoot)
	t.Run("RecreateDirectoryIsEmpty", suite.testRecreateDirectoryIsEmpty)
}

func (suite *StoreTestSuite) testRemoveFile(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkfile(t, store, "/f")
	require.NoError(t, store.DeleteNode(ctx, "/f"))

	_, err := store.GetNode(ctx, "/f")
	AssertErrorCode(t, metadata.ErrNotFound, err)

	entries, err := store.ListChildren(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *StoreTestSuite) testRemoveEmptyDirectory(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/d")
	require.NoError(t, store.DeleteNode(ctx, "/d"))

	_, err := store.GetNode(ctx, "/d")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testRemoveNonEmptyDirectory(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/d")
	mkfile(t, store, "/d/f")

	err := store.DeleteNode(ctx, "/d")
	AssertErrorCode(t, metadata.ErrNotEmpty, err)

	// Nothing changed
	entries, err := store.ListChildren(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, names(entries))
}

func (suite *StoreTestSuite) testRemoveMissing(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	err := store.DeleteNode(context.Background(), "/missing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testRemoveRoot(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	err := store.DeleteNode(context.Background(), metadata.RootPath)
	AssertErrorCode(t, metadata.ErrBusy, err)
}

func (suite *StoreTestSuite) testRecreateDirectoryIsEmpty(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/d")
	mkfile(t, store, "/d/f")
	require.NoError(t, store.DeleteNode(ctx, "/d/f"))
	require.NoError(t, store.DeleteNode(ctx, "/d"))
	mkdir(t, store, "/d")

	entries, err := store.ListChildren(ctx, "/d")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

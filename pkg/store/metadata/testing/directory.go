package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDirectoryTests executes all directory listing tests
func (suite *StoreTestSuite) RunDirectoryTests(t *testing.T) {
	t.Run("CreationOrder", suite.testCreationOrder)
	t.Run("EntryTypes", suite.testEntryTypes)
	t.Run("EmptyDirectory", suite.testEmptyDirectory)
	t.Run("ImmediateChildrenOnly", suite.testImmediateChildrenOnly)
	t.Run("PrefixSiblings", suite.testPrefixSiblings)
	t.Run("ListFile", suite.testListFile)
	t.Run("ListMissing", suite.testListMissing)
	t.Run("OrderAfterRemoval", suite.testOrderAfterRemoval)
	t.Run("ManyEntries", suite.testManyEntries)
	t.Run("HasChildren", suite.testHasChildren)
}

func (suite *StoreTestSuite) testCreationOrder(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	// Deliberately not alphabetical
	mkdir(t, store, "/zeta")
	mkfile(t, store, "/alpha")
	mkdir(t, store, "/mid")

	entries, err := store.ListChildren(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names(entries))
}

func (suite *StoreTestSuite) testEntryTypes(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	mkdir(t, store, "/dir_a")
	mkdir(t, store, "/dir_b")
	mkfile(t, store, "/file_a")

	entries, err := store.ListChildren(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, metadata.DTDir, entries[0].DirentType())
	assert.Equal(t, metadata.DTDir, entries[1].DirentType())
	assert.Equal(t, metadata.DTReg, entries[2].DirentType())
	assert.Equal(t, metadata.PathToINode("/file_a"), entries[2].ID)
}

func (suite *StoreTestSuite) testEmptyDirectory(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	mkdir(t, store, "/empty")

	entries, err := store.ListChildren(context.Background(), "/empty")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func (suite *StoreTestSuite) testImmediateChildrenOnly(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	mkdir(t, store, "/top")
	mkdir(t, store, "/top/dir")
	mkfile(t, store, "/top/dir/deep")
	mkfile(t, store, "/top/file")

	entries, err := store.ListChildren(context.Background(), "/top")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir", "file"}, names(entries))
}

func (suite *StoreTestSuite) testPrefixSiblings(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/top")
	mkdir(t, store, "/top_plus")
	mkfile(t, store, "/top/a")
	mkfile(t, store, "/top_plus/b")

	top, err := store.ListChildren(ctx, "/top")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(top))

	plus, err := store.ListChildren(ctx, "/top_plus")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names(plus))

	// top is empty after removing its only child even though top_plus is not
	require.NoError(t, store.DeleteNode(ctx, "/top/a"))
	has, err := store.HasChildren(ctx, "/top")
	require.NoError(t, err)
	assert.False(t, has)
}

func (suite *StoreTestSuite) testListFile(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	mkfile(t, store, "/file")

	_, err := store.ListChildren(context.Background(), "/file")
	AssertErrorCode(t, metadata.ErrNotDirectory, err)
}

func (suite *StoreTestSuite) testListMissing(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	_, err := store.ListChildren(context.Background(), "/missing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testOrderAfterRemoval(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c", "d"} {
		mkfile(t, store, "/"+n)
	}
	require.NoError(t, store.DeleteNode(ctx, "/b"))
	mkfile(t, store, "/b")

	entries, err := store.ListChildren(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d", "b"}, names(entries))
}

func (suite *StoreTestSuite) testManyEntries(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/big")

	const n = 1200
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("file_%d", i)
		mkfile(t, store, "/big/"+name)
		want = append(want, name)
	}

	// Remove every third entry to exercise tombstones/compaction
	kept := want[:0:0]
	for i, name := range want {
		if i%3 == 0 {
			require.NoError(t, store.DeleteNode(ctx, "/big/"+name))
			continue
		}
		kept = append(kept, name)
	}

	entries, err := store.ListChildren(ctx, "/big")
	require.NoError(t, err)
	assert.Equal(t, kept, names(entries))
}

func (suite *StoreTestSuite) testHasChildren(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/d")
	has, err := store.HasChildren(ctx, "/d")
	require.NoError(t, err)
	assert.False(t, has)

	mkfile(t, store, "/d/f")
	has, err = store.HasChildren(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, has)

	mkfile(t, store, "/plain")
	_, err = store.HasChildren(ctx, "/plain")
	AssertErrorCode(t, metadata.ErrNotDirectory, err)
}

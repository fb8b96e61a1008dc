package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNodeTests executes node create/read/update tests
func (suite *StoreTestSuite) RunNodeTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testCreateAndGet)
	t.Run("GetMissing", suite.testGetMissing)
	t.Run("UpdateInPlace", suite.testUpdateInPlace)
	t.Run("UpdateCannotChangeType", suite.testUpdateCannotChangeType)
	t.Run("ParentMustExist", suite.testParentMustExist)
	t.Run("ParentMustBeDirectory", suite.testParentMustBeDirectory)
	t.Run("RejectsNonCanonicalPath", suite.testRejectsNonCanonicalPath)
	t.Run("DirectorySizeIsZero", suite.testDirectorySizeIsZero)
	t.Run("GetReturnsCopy", suite.testGetReturnsCopy)
}

func (suite *StoreTestSuite) testCreateAndGet(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	attr := DefaultFileAttr()
	attr.Size = 42
	attr.Mtime = time.Unix(1700000000, 123456789)
	require.NoError(t, store.PutNode(ctx, "/file", attr))

	got, err := store.GetNode(ctx, "/file")
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTypeRegular, got.Type)
	assert.Equal(t, uint32(0o644), got.Mode)
	assert.Equal(t, uint64(42), got.Size)
	assert.Equal(t, uint32(1), got.Nlink)
	assert.Equal(t, attr.ContentID, got.ContentID)
	assert.True(t, attr.Mtime.Equal(got.Mtime), "mtime must round-trip with nanosecond precision")
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	_, err := store.GetNode(context.Background(), "/missing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testUpdateInPlace(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkfile(t, store, "/a")
	mkfile(t, store, "/b")
	mkfile(t, store, "/c")

	attr, err := store.GetNode(ctx, "/a")
	require.NoError(t, err)
	attr.Size = 1024
	require.NoError(t, store.PutNode(ctx, "/a", attr))

	got, err := store.GetNode(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), got.Size)

	// Updating must not move the entry to the end of the listing
	entries, err := store.ListChildren(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(entries))
}

func (suite *StoreTestSuite) testUpdateCannotChangeType(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	mkfile(t, store, "/f")
	err := store.PutNode(context.Background(), "/f", DefaultDirAttr())
	AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func (suite *StoreTestSuite) testParentMustExist(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	err := store.PutNode(context.Background(), "/missing/child", DefaultFileAttr())
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testParentMustBeDirectory(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	mkfile(t, store, "/file")
	err := store.PutNode(context.Background(), "/file/child", DefaultFileAttr())
	AssertErrorCode(t, metadata.ErrNotDirectory, err)
}

func (suite *StoreTestSuite) testRejectsNonCanonicalPath(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	for _, p := range []string{"relative", "/a/", "/a/../b", "//a"} {
		err := store.PutNode(context.Background(), p, DefaultFileAttr())
		AssertErrorCode(t, metadata.ErrInvalidArgument, err, "path %q", p)
	}
}

func (suite *StoreTestSuite) testDirectorySizeIsZero(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	attr := DefaultDirAttr()
	attr.Size = 4096
	require.NoError(t, store.PutNode(ctx, "/dir", attr))

	got, err := store.GetNode(ctx, "/dir")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Size)
	assert.Equal(t, uint32(2), got.Nlink)
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkfile(t, store, "/f")

	got, err := store.GetNode(ctx, "/f")
	require.NoError(t, err)
	got.Size = 99

	again, err := store.GetNode(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), again.Size)
}

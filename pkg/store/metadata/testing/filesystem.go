package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFilesystemTests executes statistics tests
func (suite *StoreTestSuite) RunFilesystemTests(t *testing.T) {
	t.Run("Statistics", suite.testStatistics)
}

func (suite *StoreTestSuite) testStatistics(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	ctx := context.Background()

	mkdir(t, store, "/d")
	mkfile(t, store, "/d/f")

	attr := DefaultFileAttr()
	attr.Size = 100
	require.NoError(t, store.PutNode(ctx, "/g", attr))

	stats, err := store.GetFilesystemStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalDirectories)
	assert.Equal(t, uint64(2), stats.TotalFiles)
	assert.Equal(t, uint64(100), stats.UsedBytes)
	assert.Equal(t, uint64(4), stats.TotalNodes())
}

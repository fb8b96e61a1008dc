package testing

import (
	"context"
	"testing"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHealthcheckTests executes store lifecycle tests
func (suite *StoreTestSuite) RunHealthcheckTests(t *testing.T) {
	t.Run("Healthy", suite.testHealthy)
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("Closed", suite.testClosed)
}

func (suite *StoreTestSuite) testHealthy(t *testing.T) {
	store := suite.newStoreWithRoot(t)
	assert.NoError(t, store.Healthcheck(context.Background()))
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.newStoreWithRoot(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Healthcheck(ctx), context.Canceled)
	_, err := store.GetNode(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}

func (suite *StoreTestSuite) testClosed(t *testing.T) {
	store := suite.NewStore()
	require.NoError(t, store.PutNode(context.Background(), metadata.RootPath, DefaultDirAttr()))
	require.NoError(t, store.Close())

	_, err := store.GetNode(context.Background(), metadata.RootPath)
	AssertErrorCode(t, metadata.ErrIOError, err)
}

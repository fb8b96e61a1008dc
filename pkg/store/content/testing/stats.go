package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests executes all storage statistics tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("GetStorageStats_Empty", suite.testGetStorageStatsEmpty)
	t.Run("GetStorageStats_WithContent", suite.testGetStorageStatsWithContent)
	t.Run("GetStorageStats_AfterDelete", suite.testGetStorageStatsAfterDelete)
}

// ============================================================================
// GetStorageStats Tests
// ============================================================================

func (suite *StoreTestSuite) testGetStorageStatsEmpty(t *testing.T) {
	store := suite.NewStore()

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, uint64(0), stats.UsedSize)
	assert.Equal(t, uint64(0), stats.ContentCount)
	assert.Equal(t, uint64(0), stats.AverageSize)
}

func (suite *StoreTestSuite) testGetStorageStatsWithContent(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, generateTestID("stats-1"), generateTestData(100), 0)
	mustWrite(t, store, generateTestID("stats-2"), generateTestData(200), 0)
	mustWrite(t, store, generateTestID("stats-3"), generateTestData(300), 0)

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)

	assert.Equal(t, uint64(600), stats.UsedSize)
	assert.Equal(t, uint64(3), stats.ContentCount)
	assert.Equal(t, uint64(200), stats.AverageSize)
	assert.GreaterOrEqual(t, stats.TotalSize, stats.AvailableSize)
}

func (suite *StoreTestSuite) testGetStorageStatsAfterDelete(t *testing.T) {
	store := suite.NewStore()

	keep := generateTestID("stats-keep")
	drop := generateTestID("stats-drop")
	mustWrite(t, store, keep, generateTestData(50), 0)
	mustWrite(t, store, drop, generateTestData(150), 0)

	require.NoError(t, store.Delete(testContext(), drop))

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), stats.UsedSize)
	assert.Equal(t, uint64(1), stats.ContentCount)
}

package testing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/content"
)

// RunBasicTests executes all basic ContentStore read tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("ReadAt_NotFound", suite.testReadAtNotFound)
	t.Run("ReadAt_Success", suite.testReadAtSuccess)
	t.Run("ReadAt_Range", suite.testReadAtRange)
	t.Run("ReadAt_ShortRead", suite.testReadAtShortRead)
	t.Run("ReadAt_PastEnd", suite.testReadAtPastEnd)
	t.Run("ReadAt_NegativeOffset", suite.testReadAtNegativeOffset)
	t.Run("ReadAt_Large", suite.testReadAtLarge)
	t.Run("GetContentSize_NotFound", suite.testGetContentSizeNotFound)
	t.Run("GetContentSize_Success", suite.testGetContentSizeSuccess)
	t.Run("ContentExists", suite.testContentExists)
}

// ============================================================================
// ReadAt Tests
// ============================================================================

func (suite *StoreTestSuite) testReadAtNotFound(t *testing.T) {
	store := suite.NewStore()

	buf := make([]byte, 8)
	_, err := store.ReadAt(testContext(), generateTestID("nonexistent"), buf, 0)

	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testReadAtSuccess(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-success")
	testData := []byte("Hello, World!")

	mustWrite(t, store, id, testData, 0)

	buf := make([]byte, len(testData))
	n, err := store.ReadAt(testContext(), id, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(testData), n)
	assert.Equal(t, testData, buf)
}

func (suite *StoreTestSuite) testReadAtRange(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-range")

	mustWrite(t, store, id, []byte("0123456789"), 0)

	buf := make([]byte, 4)
	n, err := store.ReadAt(testContext(), id, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))
}

func (suite *StoreTestSuite) testReadAtShortRead(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-short")

	mustWrite(t, store, id, []byte("abcdef"), 0)

	buf := make([]byte, 10)
	n, err := store.ReadAt(testContext(), id, buf, 2)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, "cdef", string(buf[:n]))
}

func (suite *StoreTestSuite) testReadAtPastEnd(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-past-end")

	mustWrite(t, store, id, []byte("abc"), 0)

	buf := make([]byte, 4)
	n, err := store.ReadAt(testContext(), id, buf, 100)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)
}

func (suite *StoreTestSuite) testReadAtNegativeOffset(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-negative")

	mustWrite(t, store, id, []byte("abc"), 0)

	_, err := store.ReadAt(testContext(), id, make([]byte, 1), -1)
	AssertErrorIs(t, content.ErrInvalidOffset, err)
}

func (suite *StoreTestSuite) testReadAtLarge(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("read-large")
	testData := generateTestData(1024 * 1024)

	mustWrite(t, store, id, testData, 0)

	assert.Equal(t, testData, mustReadAll(t, store, id))
}

// ============================================================================
// GetContentSize / ContentExists Tests
// ============================================================================

func (suite *StoreTestSuite) testGetContentSizeNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.GetContentSize(testContext(), generateTestID("nonexistent"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testGetContentSizeSuccess(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("size")

	mustWrite(t, store, id, generateTestData(1234), 0)

	size, err := store.GetContentSize(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), size)
}

func (suite *StoreTestSuite) testContentExists(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("exists")

	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, exists)

	mustWrite(t, store, id, []byte("x"), 0)

	exists, err = store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.True(t, exists)
}

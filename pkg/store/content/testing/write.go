package testing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/content"
)

// RunWriteTests executes all write, truncate and delete tests.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("WriteAt_Create", suite.testWriteAtCreate)
	t.Run("WriteAt_Overwrite", suite.testWriteAtOverwrite)
	t.Run("WriteAt_Append", suite.testWriteAtAppend)
	t.Run("WriteAt_Sparse", suite.testWriteAtSparse)
	t.Run("WriteAt_NegativeOffset", suite.testWriteAtNegativeOffset)
	t.Run("WriteAt_Overflow", suite.testWriteAtOverflow)
	t.Run("Truncate_Shrink", suite.testTruncateShrink)
	t.Run("Truncate_Grow", suite.testTruncateGrow)
	t.Run("Truncate_ShrinkThenGrow", suite.testTruncateShrinkThenGrow)
	t.Run("Truncate_Creates", suite.testTruncateCreates)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
}

// ============================================================================
// WriteAt Tests
// ============================================================================

func (suite *StoreTestSuite) testWriteAtCreate(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("write-create")

	mustWrite(t, store, id, []byte("hello"), 0)

	assert.Equal(t, []byte("hello"), mustReadAll(t, store, id))
}

func (suite *StoreTestSuite) testWriteAtOverwrite(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("write-overwrite")

	mustWrite(t, store, id, []byte("hello world"), 0)
	mustWrite(t, store, id, []byte("WORLD"), 6)

	assert.Equal(t, "hello WORLD", string(mustReadAll(t, store, id)))

	// A shorter write at 0 keeps the tail
	mustWrite(t, store, id, []byte("J"), 0)
	assert.Equal(t, "Jello WORLD", string(mustReadAll(t, store, id)))
}

func (suite *StoreTestSuite) testWriteAtAppend(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("write-append")

	mustWrite(t, store, id, []byte("abc"), 0)
	mustWrite(t, store, id, []byte("def"), 3)

	assert.Equal(t, "abcdef", string(mustReadAll(t, store, id)))
}

func (suite *StoreTestSuite) testWriteAtSparse(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("write-sparse")

	mustWrite(t, store, id, []byte("end"), 100)

	data := mustReadAll(t, store, id)
	require.Len(t, data, 103)
	assert.Equal(t, make([]byte, 100), data[:100])
	assert.Equal(t, "end", string(data[100:]))
}

func (suite *StoreTestSuite) testWriteAtNegativeOffset(t *testing.T) {
	store := suite.NewStore()

	err := store.WriteAt(testContext(), generateTestID("write-negative"), []byte("x"), -5)
	AssertErrorIs(t, content.ErrInvalidOffset, err)
}

func (suite *StoreTestSuite) testWriteAtOverflow(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("write-overflow")

	err := store.WriteAt(testContext(), id, []byte("ab"), math.MaxInt64)
	AssertErrorIs(t, content.ErrTooLarge, err)

	err = store.Truncate(testContext(), id, math.MaxUint64)
	AssertErrorIs(t, content.ErrTooLarge, err)
}

// ============================================================================
// Truncate Tests
// ============================================================================

func (suite *StoreTestSuite) testTruncateShrink(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("truncate-shrink")

	mustWrite(t, store, id, []byte("0123456789"), 0)
	require.NoError(t, store.Truncate(testContext(), id, 4))

	assert.Equal(t, "0123", string(mustReadAll(t, store, id)))
}

func (suite *StoreTestSuite) testTruncateGrow(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("truncate-grow")

	mustWrite(t, store, id, []byte("ab"), 0)
	require.NoError(t, store.Truncate(testContext(), id, 6))

	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0}, mustReadAll(t, store, id))
}

func (suite *StoreTestSuite) testTruncateShrinkThenGrow(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("truncate-shrink-grow")

	mustWrite(t, store, id, []byte("abcdef"), 0)
	require.NoError(t, store.Truncate(testContext(), id, 2))
	require.NoError(t, store.Truncate(testContext(), id, 6))

	// Discarded bytes must not reappear
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0}, mustReadAll(t, store, id))
}

func (suite *StoreTestSuite) testTruncateCreates(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("truncate-create")

	require.NoError(t, store.Truncate(testContext(), id, 16))

	data := mustReadAll(t, store, id)
	assert.True(t, bytes.Equal(make([]byte, 16), data))
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("delete")

	mustWrite(t, store, id, []byte("bye"), 0)
	require.NoError(t, store.Delete(testContext(), id))

	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("delete-twice")

	require.NoError(t, store.Delete(testContext(), id))
	require.NoError(t, store.Delete(testContext(), id))
}

package testing

import (
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// generateTestID returns a unique content ID. The label only aids debugging.
func generateTestID(label string) metadata.ContentID {
	return metadata.ContentID(label + "-" + uuid.NewString())
}

// generateTestData returns size bytes of a repeating, position-dependent
// pattern so misplaced ranges are detected.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251 + 1)
	}
	return data
}

func mustWrite(t *testing.T, store content.ContentStore, id metadata.ContentID, data []byte, offset int64) {
	t.Helper()
	require.NoError(t, store.WriteAt(testContext(), id, data, offset))
}

// mustReadAll reads the entire stored content.
func mustReadAll(t *testing.T, store content.ContentStore, id metadata.ContentID) []byte {
	t.Helper()

	size, err := store.GetContentSize(testContext(), id)
	require.NoError(t, err)

	buf := make([]byte, size)
	n, err := store.ReadAt(testContext(), id, buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err)
	}
	require.Equal(t, int(size), n)
	return buf
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, target, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, target), "expected %v, got %v", target, err)
}

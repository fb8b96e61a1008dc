package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/nsfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DefaultDirAttr creates default attributes for a directory.
func DefaultDirAttr() *metadata.FileAttr {
	return metadata.NewDirectoryAttr(0o755, 1000, 1000, time.Now())
}

// DefaultFileAttr creates default attributes for an empty regular file.
func DefaultFileAttr() *metadata.FileAttr {
	return metadata.NewFileAttr(0o644, 1000, 1000, time.Now())
}

// newStoreWithRoot returns a fresh store that already contains "/".
func (suite *StoreTestSuite) newStoreWithRoot(t *testing.T) metadata.MetadataStore {
	t.Helper()

	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.PutNode(context.Background(), metadata.RootPath, DefaultDirAttr()))
	return store
}

func mkdir(t *testing.T, store metadata.MetadataStore, path string) {
	t.Helper()
	require.NoError(t, store.PutNode(context.Background(), path, DefaultDirAttr()), "mkdir %s", path)
}

func mkfile(t *testing.T, store metadata.MetadataStore, path string) {
	t.Helper()
	require.NoError(t, store.PutNode(context.Background(), path, DefaultFileAttr()), "create %s", path)
}

func names(entries []metadata.DirEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// AssertErrorCode asserts that err wraps a StoreError with the expected code.
func AssertErrorCode(t *testing.T, expected metadata.ErrorCode, err error, msgAndArgs ...any) bool {
	t.Helper()

	if err == nil {
		return assert.Fail(t, "Expected an error but got nil", msgAndArgs...)
	}

	code, ok := metadata.CodeOf(err)
	if !ok {
		return assert.Fail(t, "Expected a StoreError", append([]any{err}, msgAndArgs...)...)
	}
	return assert.Equal(t, expected, code, msgAndArgs...)
}

package errno

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want unix.Errno
	}{
		{"nil", nil, 0},
		{"errno passthrough", unix.ENOTEMPTY, unix.ENOTEMPTY},
		{"wrapped errno", fmt.Errorf("rmdir: %w", unix.EBUSY), unix.EBUSY},
		{"zero errno", unix.Errno(0), unix.EIO},
		{"store not found", metadata.NewNotFoundError("/a"), unix.ENOENT},
		{"store exists", metadata.NewAlreadyExistsError("/a"), unix.EEXIST},
		{"store not dir", metadata.NewNotDirectoryError("/a"), unix.ENOTDIR},
		{"store is dir", metadata.NewIsDirectoryError("/a"), unix.EISDIR},
		{"store not empty", metadata.NewNotEmptyError("/a"), unix.ENOTEMPTY},
		{"store invalid", metadata.NewInvalidArgumentError("bad", "/a"), unix.EINVAL},
		{"store busy", metadata.NewError(metadata.ErrBusy, "root", "/"), unix.EBUSY},
		{"store stale", metadata.NewError(metadata.ErrStaleHandle, "gone", "/a"), unix.ESTALE},
		{"store bad handle", metadata.NewError(metadata.ErrInvalidHandle, "fd", ""), unix.EBADF},
		{"store unsupported", metadata.NewError(metadata.ErrNotSupported, "symlink", "/l"), unix.ENOTSUP},
		{"store io", metadata.NewError(metadata.ErrIOError, "closed", ""), unix.EIO},
		{"wrapped store", fmt.Errorf("lookup: %w", metadata.NewNotFoundError("/a")), unix.ENOENT},
		{"path error", &fs.PathError{Op: "mkdir", Path: "/x", Err: unix.EACCES}, unix.EACCES},
		{"os not exist", os.ErrNotExist, unix.ENOENT},
		{"os exist", os.ErrExist, unix.EEXIST},
		{"os permission", os.ErrPermission, unix.EACCES},
		{"content not found", fmt.Errorf("id: %w", content.ErrContentNotFound), unix.ENOENT},
		{"content offset", content.ErrInvalidOffset, unix.EINVAL},
		{"content full", content.ErrStorageFull, unix.ENOSPC},
		{"content too large", content.CheckRange(math.MaxInt64, 2), unix.EFBIG},
		{"canceled", context.Canceled, unix.EINTR},
		{"deadline", context.DeadlineExceeded, unix.ETIMEDOUT},
		{"unknown", errors.New("backend exploded"), unix.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err))
		})
	}
}

func TestNewResult(t *testing.T) {
	ok := NewResult(42, nil)
	assert.Equal(t, Result{Retval: 42}, ok)
	assert.False(t, ok.Failed())
	assert.Empty(t, ok.ErrnoName())

	failed := NewResult(42, metadata.NewNotEmptyError("/d"))
	assert.Equal(t, int64(-1), failed.Retval)
	assert.Equal(t, unix.ENOTEMPTY, failed.Errno)
	assert.Equal(t, "ENOTEMPTY", failed.ErrnoName())
}

func TestName(t *testing.T) {
	assert.Equal(t, "", Name(0))
	assert.Equal(t, "ENOENT", Name(unix.ENOENT))
	assert.Equal(t, "EINVAL", Name(unix.EINVAL))
}

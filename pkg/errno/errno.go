// Package errno translates failures from every layer of nsfs into POSIX
// errno values.
//
// The translation is total: FromError never returns an unclassified error.
// Backends keep returning rich errors (*metadata.StoreError, wrapped
// sentinels, *fs.PathError); only the POSIX boundary calls FromError.
package errno

import (
	"context"
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// storeCodes maps metadata store error codes to errno values.
var storeCodes = map[metadata.ErrorCode]unix.Errno{
	metadata.ErrNotFound:         unix.ENOENT,
	metadata.ErrAccessDenied:     unix.EACCES,
	metadata.ErrPermissionDenied: unix.EPERM,
	metadata.ErrAlreadyExists:    unix.EEXIST,
	metadata.ErrNotEmpty:         unix.ENOTEMPTY,
	metadata.ErrIsDirectory:      unix.EISDIR,
	metadata.ErrNotDirectory:     unix.ENOTDIR,
	metadata.ErrInvalidArgument:  unix.EINVAL,
	metadata.ErrIOError:          unix.EIO,
	metadata.ErrNoSpace:          unix.ENOSPC,
	metadata.ErrReadOnly:         unix.EROFS,
	metadata.ErrNotSupported:     unix.ENOTSUP,
	metadata.ErrInvalidHandle:    unix.EBADF,
	metadata.ErrStaleHandle:      unix.ESTALE,
	metadata.ErrBusy:             unix.EBUSY,
}

// FromError converts err to exactly one errno.
//
// nil maps to 0. The order of checks matters: an explicit errno anywhere in
// the chain wins over the generic os/fs sentinels it may also match.
func FromError(err error) unix.Errno {
	if err == nil {
		return 0
	}

	var e unix.Errno
	if errors.As(err, &e) {
		if e == 0 {
			return unix.EIO
		}
		return e
	}

	if code, ok := metadata.CodeOf(err); ok {
		if mapped, found := storeCodes[code]; found {
			return mapped
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return unix.EINTR
	case errors.Is(err, context.DeadlineExceeded):
		return unix.ETIMEDOUT
	case errors.Is(err, content.ErrContentNotFound), errors.Is(err, fs.ErrNotExist):
		return unix.ENOENT
	case errors.Is(err, content.ErrInvalidOffset), errors.Is(err, fs.ErrInvalid):
		return unix.EINVAL
	case errors.Is(err, content.ErrStorageFull):
		return unix.ENOSPC
	case errors.Is(err, content.ErrTooLarge):
		return unix.EFBIG
	case errors.Is(err, fs.ErrExist):
		return unix.EEXIST
	case errors.Is(err, fs.ErrPermission):
		return unix.EACCES
	case errors.Is(err, fs.ErrClosed):
		return unix.EBADF
	}

	logger.Debug("Unclassified error mapped to EIO: %v", err)
	return unix.EIO
}

// Name returns the symbolic name of e ("ENOENT"), or "" for 0.
func Name(e unix.Errno) string {
	if e == 0 {
		return ""
	}
	if name := unix.ErrnoName(e); name != "" {
		return name
	}
	return e.Error()
}

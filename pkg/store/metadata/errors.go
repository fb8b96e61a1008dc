package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from metadata store operations.
//
// These are namespace errors (entry not found, directory not empty, etc.)
// as opposed to infrastructure errors (disk failure, corrupted record).
//
// The POSIX layer translates StoreError codes to errno values; see
// pkg/errno for the mapping.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the namespace path related to the error (if applicable)
	// This helps with debugging and error reporting
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
//
// These are generic error categories that map to errno values.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file/directory doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAccessDenied indicates access to the namespace was denied
	ErrAccessDenied

	// ErrPermissionDenied indicates file-level permission was denied
	ErrPermissionDenied

	// ErrAlreadyExists indicates an entry with the name already exists
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory is not empty (cannot be removed)
	ErrNotEmpty

	// ErrIsDirectory indicates operation expected a file but got a directory
	ErrIsDirectory

	// ErrNotDirectory indicates operation expected a directory but got a file
	// (including a non-directory used as an intermediate path component)
	ErrNotDirectory

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: negative size, unknown whence, relative namespace path
	ErrInvalidArgument

	// ErrIOError indicates an I/O error occurred in a backend
	ErrIOError

	// ErrNoSpace indicates no space is available
	ErrNoSpace

	// ErrReadOnly indicates operation failed because the store is read-only
	ErrReadOnly

	// ErrNotSupported indicates operation is not supported by implementation
	// Examples: symlink creation
	ErrNotSupported

	// ErrInvalidHandle indicates the descriptor is unknown or was opened
	// with an access mode that does not allow the operation
	ErrInvalidHandle

	// ErrStaleHandle indicates the descriptor is valid but the entry it
	// refers to has been removed from the namespace
	ErrStaleHandle

	// ErrBusy indicates the entry is in use and cannot be removed
	// Example: removing the mount root
	ErrBusy
)

// String returns a short name for the error code, used in logs and metric labels.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAccessDenied:
		return "access_denied"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrNotEmpty:
		return "not_empty"
	case ErrIsDirectory:
		return "is_directory"
	case ErrNotDirectory:
		return "not_directory"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrIOError:
		return "io_error"
	case ErrNoSpace:
		return "no_space"
	case ErrReadOnly:
		return "read_only"
	case ErrNotSupported:
		return "not_supported"
	case ErrInvalidHandle:
		return "invalid_handle"
	case ErrStaleHandle:
		return "stale_handle"
	case ErrBusy:
		return "busy"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// NewError creates a StoreError with the given code, message and path.
func NewError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

func NewNotFoundError(path string) *StoreError {
	return NewError(ErrNotFound, "no such file or directory", path)
}

func NewAlreadyExistsError(path string) *StoreError {
	return NewError(ErrAlreadyExists, "file exists", path)
}

func NewNotDirectoryError(path string) *StoreError {
	return NewError(ErrNotDirectory, "not a directory", path)
}

func NewIsDirectoryError(path string) *StoreError {
	return NewError(ErrIsDirectory, "is a directory", path)
}

func NewNotEmptyError(path string) *StoreError {
	return NewError(ErrNotEmpty, "directory not empty", path)
}

func NewInvalidArgumentError(message, path string) *StoreError {
	return NewError(ErrInvalidArgument, message, path)
}

// CodeOf extracts the ErrorCode from err, following wrapped errors.
//
// Returns:
//   - ErrorCode: The code of the first StoreError in the chain
//   - bool: false if err does not wrap a StoreError
func CodeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err wraps a StoreError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err wraps an ErrNotFound StoreError.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

package content

import (
	"errors"
	"fmt"
	"math"
)

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all content store implementations. Implementations wrap them with
// additional context:
//
//	if !exists {
//	    return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
//	}
//
// Callers check with errors.Is.

var (
	// ErrContentNotFound indicates the requested content does not exist.
	//
	// A regular file that has never been written has no content yet, so the
	// POSIX layer treats this as an empty file rather than an error.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidOffset indicates the offset is invalid for the operation.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrStorageFull indicates the backend has no space left.
	ErrStorageFull = errors.New("storage full")

	// ErrTooLarge indicates the content would grow past what the backend
	// can address.
	ErrTooLarge = errors.New("content too large")
)

// CheckRange validates a write of n bytes at offset: the offset must not be
// negative and the end of the write must fit in an int64.
func CheckRange(offset int64, n int) error {
	if offset < 0 {
		return fmt.Errorf("offset %d: %w", offset, ErrInvalidOffset)
	}
	if offset > math.MaxInt64-int64(n) {
		return fmt.Errorf("write of %d bytes at offset %d: %w", n, offset, ErrTooLarge)
	}
	return nil
}

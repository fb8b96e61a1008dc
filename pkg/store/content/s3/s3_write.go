package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// MaxObjectSize is the largest object a single PutObject can upload.
// Writes and truncates past it fail with content.ErrTooLarge.
const MaxObjectSize = 5 << 30

// WriteAt writes data at offset.
//
// Writing at offset 0 over a missing object, or covering the whole existing
// object, uploads data directly. Any other write downloads the object,
// patches it in memory and uploads the result.
func (s *S3ContentStore) WriteAt(ctx context.Context, id metadata.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.CheckRange(offset, len(data)); err != nil {
		return err
	}
	if end := offset + int64(len(data)); end > MaxObjectSize {
		return fmt.Errorf("write ending at %d: %w", end, content.ErrTooLarge)
	}

	key := s.getObjectKey(id)
	unlock := s.lockObject(key)
	defer unlock()

	existing, err := s.readObject(ctx, id)
	if err != nil {
		return err
	}

	end := offset + int64(len(data))
	if offset == 0 && int64(len(existing)) <= end {
		return s.putObject(ctx, key, data)
	}

	buf := existing
	if int64(len(buf)) < end {
		buf = make([]byte, end)
		copy(buf, existing)
	}
	copy(buf[offset:], data)

	s.metrics.RecordRewrite("write", int64(len(buf)))
	return s.putObject(ctx, key, buf)
}

// Truncate resizes the object, creating it if missing.
func (s *S3ContentStore) Truncate(ctx context.Context, id metadata.ContentID, newSize uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newSize > MaxObjectSize {
		return fmt.Errorf("truncate to %d: %w", newSize, content.ErrTooLarge)
	}

	key := s.getObjectKey(id)
	unlock := s.lockObject(key)
	defer unlock()

	size, err := s.GetContentSize(ctx, id)
	exists := true
	if err != nil {
		if !isContentNotFound(err) {
			return err
		}
		exists = false
	}

	if exists && size == newSize {
		return nil
	}

	if newSize == 0 || !exists {
		return s.putObject(ctx, key, make([]byte, newSize))
	}

	var buf []byte
	if newSize < size {
		// Only the retained prefix needs to be downloaded
		body, err := s.getRange(ctx, id, 0, int64(newSize))
		if err != nil {
			return err
		}
		buf = make([]byte, newSize)
		_, readErr := io.ReadFull(body, buf)
		_ = body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read object for truncate: %w", readErr)
		}
	} else {
		existing, err := s.readObject(ctx, id)
		if err != nil {
			return err
		}
		buf = make([]byte, newSize)
		copy(buf, existing)
	}

	s.metrics.RecordRewrite("truncate", int64(len(buf)))
	return s.putObject(ctx, key, buf)
}

// Delete removes the object. S3 DeleteObject succeeds for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("DeleteObject", start, err)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.objectLocks.Delete(s.getObjectKey(id))
	s.invalidateStats()
	return nil
}

func (s *S3ContentStore) putObject(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	s.metrics.RecordBytes("write", int64(len(data)))
	s.invalidateStats()
	return nil
}

func isContentNotFound(err error) bool {
	return errors.Is(err, content.ErrContentNotFound)
}

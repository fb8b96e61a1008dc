package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/nsfs/pkg/store/content"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// ReadAt reads len(p) bytes at offset using a ranged GetObject.
//
// The object size is fetched first so reads at or past the end return io.EOF
// without issuing an invalid range request.
func (s *S3ContentStore) ReadAt(ctx context.Context, id metadata.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}

	size, err := s.GetContentSize(ctx, id)
	if err != nil {
		return 0, err
	}

	if uint64(offset) >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := int64(len(p))
	if remaining := int64(size) - offset; remaining < want {
		want = remaining
	}

	body, err := s.getRange(ctx, id, offset, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// GetContentSize returns the object size from HeadObject.
func (s *S3ContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}
	return uint64(*result.ContentLength), nil
}

// ContentExists checks for the object with HeadObject.
func (s *S3ContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	_, err := s.GetContentSize(ctx, id)
	if err == nil {
		return true, nil
	}
	if isContentNotFound(err) {
		return false, nil
	}
	return false, err
}

// getRange issues a GetObject for [offset, offset+length).
func (s *S3ContentStore) getRange(ctx context.Context, id metadata.ContentID, offset, length int64) (io.ReadCloser, error) {
	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &metricsReadCloser{
		ReadCloser: result.Body,
		metrics:    s.metrics,
		operation:  "read",
	}, nil
}

// readObject downloads the whole object, or returns nil for a missing one.
func (s *S3ContentStore) readObject(ctx context.Context, id metadata.ContentID) ([]byte, error) {
	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	body := &metricsReadCloser{ReadCloser: result.Body, metrics: s.metrics, operation: "read"}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", id, err)
	}
	return data, nil
}

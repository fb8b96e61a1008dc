//go:build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nsfs/pkg/store/content"
	contenttesting "github.com/marmos91/nsfs/pkg/store/content/testing"
)

// TestS3ContentStore_Integration runs the content store suite against a real
// S3-compatible service.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./pkg/store/content/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3ContentStore_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	bucketName := "nsfs-test-bucket"
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)})
	require.NoError(t, err)

	t.Cleanup(func() {
		listResp, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
		if listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	})

	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.ContentStore {
			// A fresh prefix per test keeps statistics isolated
			store, err := NewS3ContentStore(ctx, S3ContentStoreConfig{
				Client:    client,
				Bucket:    bucketName,
				KeyPrefix: "test/" + uuid.NewString() + "/",
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

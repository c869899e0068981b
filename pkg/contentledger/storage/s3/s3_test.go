package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-ledger/pkg/contentledger"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)

		b := backend.(*Backend)
		assert.Equal(t, "us-east-1", b.config.Region)
		assert.Equal(t, "test-bucket", b.bucket)
	})
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", &types.NoSuchKey{}, true},
		{"NotFound", &types.NotFound{}, true},
		{"GenericNoSuchKey", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"Plain", errors.New("boom"), false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestBucketMissing(t *testing.T) {
	assert.True(t, bucketMissing(&types.NoSuchBucket{}))
	assert.True(t, bucketMissing(errors.New("api error BadRequest: Bad Request")))
	assert.False(t, bucketMissing(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.Equal(t, "BucketAlreadyOwnedByYou", apiErrorCode(&smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}))
	assert.Empty(t, apiErrorCode(errors.New("boom")))
}

// Runs against MinIO or S3 when S3_TEST_ENDPOINT is set
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_TEST_ENDPOINT not set")
	}

	backend, err := New(Config{
		Region:                 "us-east-1",
		Bucket:                 "ledger-test-" + uuid.NewString()[:8],
		AccessKeyID:            os.Getenv("S3_TEST_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("S3_TEST_SECRET_KEY"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "snapshots/" + uuid.NewString() + ".json"

	require.NoError(t, backend.Upload(ctx, key, strings.NewReader(`{"version":1}`)))

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	keys, err := backend.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, contentledger.ErrBlobNotFound)
}

package awsutils

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	sizes map[string]int64
}

func (m *mockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	size, ok := m.sizes[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{ContentLength: size}, nil
}

func TestBucketAndKey(t *testing.T) {
	dto := S3Dto{ObjPath: "s3://archive-bucket/EGAF0001/file.bam.c4gh"}
	bucket, key, err := dto.BucketAndKey()
	require.NoError(t, err)
	assert.Equal(t, "archive-bucket", bucket)
	assert.Equal(t, "EGAF0001/file.bam.c4gh", key)

	for _, bad := range []string{"s3://", "s3://bucket-only", "s3:///key"} {
		dto := S3Dto{ObjPath: bad}
		_, _, err := dto.BucketAndKey()
		assert.Error(t, err, bad)
	}
	assert.True(t, IsS3Path("s3://b/k"))
	assert.False(t, IsS3Path("/archive/b/k"))
}

func TestHeadS3Object(t *testing.T) {
	client := &mockS3Client{sizes: map[string]int64{"bucket/a.bam": 1016}}
	size, err := HeadS3Object(context.Background(), S3Dto{ObjPath: "s3://bucket/a.bam", Client: client})
	require.NoError(t, err)
	assert.Equal(t, int64(1016), size)

	_, err = HeadS3Object(context.Background(), S3Dto{ObjPath: "s3://bucket/missing.bam", Client: client})
	assert.Error(t, err)
}

func TestPresignNeedsRealClient(t *testing.T) {
	_, err := PresignGetObject(context.Background(), S3Dto{ObjPath: "s3://bucket/a.bam", Client: &mockS3Client{}})
	assert.Error(t, err)
}

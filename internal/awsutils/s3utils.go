// Package awsutils wraps the S3 calls used to sign archived objects held in
// the secondary object store.
package awsutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Proto prefixes object paths that live in S3.
const S3Proto = "s3://"

// PresignLifetime is how long a URL from PresignGetObject stays valid, the
// SDK default.
const PresignLifetime = 15 * time.Minute

type S3ClientApi interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Dto struct {
	ObjPath string
	Client  S3ClientApi
}

// IsS3Path reports whether path names an S3 object.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, S3Proto)
}

// BucketAndKey splits a path-style s3://bucket/key path.
func (dto *S3Dto) BucketAndKey() (string, string, error) {
	trimmedPath := strings.TrimPrefix(dto.ObjPath, S3Proto)
	bucketName := strings.Split(trimmedPath, "/")[0]
	objKeyName := strings.TrimPrefix(trimmedPath, bucketName+"/")
	if bucketName == "" || objKeyName == "" || objKeyName == trimmedPath {
		return "", "", fmt.Errorf("malformed s3 path %q", dto.ObjPath)
	}
	return bucketName, objKeyName, nil
}

// NewS3Client returns the injected client or one built from the default AWS
// configuration chain.
func (dto *S3Dto) NewS3Client(ctx context.Context) (S3ClientApi, error) {
	if dto.Client != nil {
		return dto.Client, nil
	}
	defaultCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(defaultCfg), nil
}

func HeadS3Object(ctx context.Context, dto S3Dto) (int64, error) {
	client, err := dto.NewS3Client(ctx)
	if err != nil {
		return 0, err
	}
	bucketName, objKeyName, err := dto.BucketAndKey()
	if err != nil {
		return 0, err
	}
	headResp, herr := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objKeyName),
	})
	if herr != nil {
		return 0, herr
	}
	return headResp.ContentLength, nil
}

// PresignGetObject signs a GET of the whole object, valid for
// PresignLifetime.
func PresignGetObject(ctx context.Context, dto S3Dto) (string, error) {
	client, err := dto.NewS3Client(ctx)
	if err != nil {
		return "", err
	}

	// presigning needs the concrete client, a mock cannot sign
	fullClient, ok := client.(*s3.Client)
	if !ok {
		return "", errors.New("presign requires a real s3 client")
	}
	bucketName, objKeyName, err := dto.BucketAndKey()
	if err != nil {
		return "", err
	}

	presignClient := s3.NewPresignClient(fullClient)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objKeyName),
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

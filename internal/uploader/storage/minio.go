package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStorage targets self-hosted S3-compatible services (MinIO, Ceph,
// LocalStack) through minio-go.
type MinioStorage struct {
	client minioAPI
}

var _ ObjectStorage = (*MinioStorage)(nil)

func NewMinioStorage(opts Options) (*MinioStorage, error) {
	endpoint, secure := splitEndpoint(opts.BaseEndpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	lookup := minio.BucketLookupAuto
	if opts.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:       secure,
		Region:       region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioStorage{client: client}, nil
}

func (s *MinioStorage) CheckBucket(ctx context.Context, bucket string) (BucketStatus, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		err = classifyMinioError("bucket exists", err)
		return statusFromError(err), err
	}
	if !exists {
		return BucketNotFound, nil
	}
	return BucketAccessible, nil
}

func (s *MinioStorage) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classifyMinioError("put object", err)
	}
	return nil
}

func classifyMinioError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 && resp.Code == "" {
		return err
	}
	return &ProviderError{Op: op, Code: resp.Code, StatusCode: resp.StatusCode, Err: err}
}

// splitEndpoint turns "https://host:9000/" into ("host:9000", true). A bare
// host defaults to TLS.
func splitEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	secure := true
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}
	return strings.TrimSuffix(endpoint, "/"), secure
}

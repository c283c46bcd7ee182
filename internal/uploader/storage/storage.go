// Package storage wraps the object-storage SDKs behind the two operations
// the uploader needs: checking that a bucket is reachable and putting a
// local file under a key.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// BucketStatus is the outcome of a bucket existence check.
type BucketStatus int

const (
	BucketUnknown BucketStatus = iota
	BucketAccessible
	BucketNotFound
	BucketForbidden
)

func (s BucketStatus) String() string {
	switch s {
	case BucketAccessible:
		return "accessible"
	case BucketNotFound:
		return "not_found"
	case BucketForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// ObjectStorage is implemented by S3Storage and MinioStorage.
type ObjectStorage interface {
	// CheckBucket issues a single read-only request. The error is set when
	// the provider returned something other than success.
	CheckBucket(ctx context.Context, bucket string) (BucketStatus, error)

	// UploadFile streams the file at path to bucket/key with the given
	// content type.
	UploadFile(ctx context.Context, bucket, key, path, contentType string) error
}

// Options carries what every backend needs to build a client.
type Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BaseEndpoint    string
	UsePathStyle    bool
}

// ProviderError is a failure reported by the storage service itself, as
// opposed to local or transport failures which are returned unwrapped.
type ProviderError struct {
	Op         string
	Code       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Code, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError reports whether err carries a ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsNoSuchBucket reports whether the provider rejected a request because the
// bucket does not exist.
func IsNoSuchBucket(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Code == "NoSuchBucket"
}

// statusFromError maps a provider error on a bucket-level request to a status.
func statusFromError(err error) BucketStatus {
	pe, ok := AsProviderError(err)
	if !ok {
		return BucketUnknown
	}
	switch {
	case pe.StatusCode == 404, pe.Code == "NotFound", pe.Code == "NoSuchBucket":
		return BucketNotFound
	case pe.StatusCode == 403, pe.Code == "Forbidden", pe.Code == "AccessDenied":
		return BucketForbidden
	default:
		return BucketUnknown
	}
}

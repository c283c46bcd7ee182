// Package uploader pushes local files into an object-storage bucket, one
// blocking transfer at a time, reporting progress on a writer.
package uploader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/config"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/storage"
)

// Summary is what a batch did. It is informational only.
type Summary struct {
	Attempted int
	Succeeded []string
	Failed    []string
}

type Uploader struct {
	store  storage.ObjectStorage
	cfg    *config.Config
	out    io.Writer
	logger logging.Logger
}

func New(store storage.ObjectStorage, cfg *config.Config, out io.Writer, logger logging.Logger) *Uploader {
	return &Uploader{store: store, cfg: cfg, out: out, logger: logger}
}

// VerifyBucket checks the configured bucket once and prints the outcome.
// It returns the status so the caller can decide whether to continue.
func (u *Uploader) VerifyBucket(ctx context.Context) storage.BucketStatus {
	bucket := u.cfg.Bucket

	status, err := u.store.CheckBucket(ctx, bucket)
	u.logger.Debug(ctx, "bucket checked", "bucket", bucket, "status", status.String())

	switch status {
	case storage.BucketAccessible:
		u.printf("✓ Bucket '%s' exists and is accessible.\n\n", bucket)
	case storage.BucketNotFound:
		u.printf("✗ Bucket '%s' does not exist.\n", bucket)
	case storage.BucketForbidden:
		u.printf("✗ You do not have permission to access bucket '%s'.\n", bucket)
	default:
		u.printf("✗ Error checking bucket: %v\n", err)
		u.logger.Error(ctx, "bucket check failed", "bucket", bucket, "error", err)
	}

	return status
}

// PrintBucketHint tells the operator what to do after a failed check. The
// bucket is never created here.
func (u *Uploader) PrintBucketHint(status storage.BucketStatus) {
	switch status {
	case storage.BucketNotFound:
		u.printf("\nPlease create the bucket first using:\n")
		u.printf("  aws s3 mb s3://%s --region %s\n", u.cfg.Bucket, u.cfg.Region)
	case storage.BucketForbidden:
		u.printf("\nCheck that the credentials allow s3:ListBucket and s3:PutObject on '%s'.\n", u.cfg.Bucket)
	default:
		u.printf("\nCheck the endpoint and credentials. If the bucket does not exist, create it using:\n")
		u.printf("  aws s3 mb s3://%s --region %s\n", u.cfg.Bucket, u.cfg.Region)
	}
}

// UploadAll transfers files one after another. A failing file is reported
// and skipped; it never stops the batch.
func (u *Uploader) UploadAll(ctx context.Context, files []LocalFile) Summary {
	var sum Summary

	if len(files) == 0 {
		u.printf("No files matching '%s' found in %s.\n", u.cfg.Pattern, u.cfg.Dir)
		return sum
	}

	u.printf("Found %d file(s) to upload.\n", len(files))
	u.printf("Destination bucket: %s\n\n", u.cfg.Bucket)

	for _, f := range files {
		sum.Attempted++
		if u.uploadOne(ctx, f) {
			sum.Succeeded = append(sum.Succeeded, f.Name)
		} else {
			sum.Failed = append(sum.Failed, f.Name)
		}
	}

	u.logger.Info(ctx, "upload batch finished",
		"bucket", u.cfg.Bucket,
		"attempted", sum.Attempted,
		"succeeded", len(sum.Succeeded),
		"failed", len(sum.Failed),
	)
	if len(sum.Failed) > 0 {
		u.logger.Warn(ctx, "some files were not uploaded", "files", strings.Join(sum.Failed, ","))
	}

	return sum
}

func (u *Uploader) uploadOne(ctx context.Context, f LocalFile) bool {
	key := TargetKey(u.cfg.KeyPrefix, f.Name)
	u.printf("Uploading %s (%.2f MB)...\n", f.Name, f.SizeMB())

	uploadCtx := ctx
	if u.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, u.cfg.UploadTimeout)
		defer cancel()
	}

	err := u.store.UploadFile(uploadCtx, u.cfg.Bucket, key, f.Path, u.cfg.ContentType)
	if err == nil {
		u.printf("✓ %s uploaded successfully to %s\n", f.Name, ObjectURI(u.cfg.Bucket, key))
		u.logger.Debug(ctx, "object uploaded", "key", key, "bytes", f.Size)
		return true
	}

	u.logger.Error(ctx, "upload failed", "file", f.Name, "key", key, "error", err)

	switch {
	case storage.IsNoSuchBucket(err):
		u.printf("✗ Error: bucket '%s' does not exist.\n", u.cfg.Bucket)
		u.printf("  Please create the bucket first or check its name.\n")
	case isProviderError(err):
		u.printf("✗ Error uploading %s: %v\n", f.Name, err)
	default:
		u.printf("✗ Unexpected error uploading %s: %v\n", f.Name, err)
	}
	return false
}

func isProviderError(err error) bool {
	_, ok := storage.AsProviderError(err)
	return ok
}

func (u *Uploader) printf(format string, args ...any) {
	fmt.Fprintf(u.out, format, args...)
}

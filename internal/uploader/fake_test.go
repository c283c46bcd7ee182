package uploader

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/lakehouse/internal/uploader/storage"
)

type upload struct {
	Bucket      string
	Key         string
	Path        string
	ContentType string
	HasDeadline bool
}

type fakeStorage struct {
	mu sync.Mutex

	status    storage.BucketStatus
	statusErr error
	failures  map[string]error

	checks  int
	uploads []upload
}

func newFakeStorage(status storage.BucketStatus) *fakeStorage {
	return &fakeStorage{status: status, failures: map[string]error{}}
}

func (f *fakeStorage) CheckBucket(ctx context.Context, bucket string) (storage.BucketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.status, f.statusErr
}

func (f *fakeStorage) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	f.uploads = append(f.uploads, upload{Bucket: bucket, Key: key, Path: path, ContentType: contentType, HasDeadline: hasDeadline})
	return f.failures[key]
}

func (f *fakeStorage) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks + len(f.uploads)
}

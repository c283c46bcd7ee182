package uploader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/config"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg *config.Config, store *fakeStorage) (*App, *bytes.Buffer, *int) {
	var out bytes.Buffer
	built := 0
	app := NewApp(cfg, &out, logging.Discard()).WithStorageFactory(func(ctx context.Context, c *config.Config) (storage.ObjectStorage, error) {
		built++
		return store, nil
	})
	return app, &out, &built
}

func makeFile(t *testing.T, dir, name string, size int64) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
}

func TestApp_Run_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{name: "no access key", mutate: func(c *config.Config) { c.AccessKeyID = "" }},
		{name: "no secret key", mutate: func(c *config.Config) { c.SecretAccessKey = "" }},
		{name: "neither", mutate: func(c *config.Config) { c.AccessKeyID, c.SecretAccessKey = "", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir())
			tt.mutate(cfg)
			store := newFakeStorage(storage.BucketAccessible)
			app, out, built := newTestApp(cfg, store)

			code := app.Run(context.Background())

			assert.Equal(t, ExitMissingCredentials, code)
			assert.Zero(t, *built, "storage client must not be built")
			assert.Zero(t, store.calls())
			assert.Contains(t, out.String(), "AWS credentials are not configured")
		})
	}
}

func TestApp_Run_InvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Backend = "ftp"
	app, _, built := newTestApp(cfg, newFakeStorage(storage.BucketAccessible))

	assert.Equal(t, ExitConfigError, app.Run(context.Background()))
	assert.Zero(t, *built)
}

func TestApp_Run_StorageInitError(t *testing.T) {
	var out bytes.Buffer
	app := NewApp(testConfig(t.TempDir()), &out, logging.Discard()).WithStorageFactory(func(ctx context.Context, c *config.Config) (storage.ObjectStorage, error) {
		return nil, errors.New("no endpoint")
	})

	assert.Equal(t, ExitConfigError, app.Run(context.Background()))
	assert.Contains(t, out.String(), "no endpoint")
}

func TestApp_Run_BucketNotFound(t *testing.T) {
	dir := t.TempDir()
	makeFile(t, dir, "business.json", 100)
	store := newFakeStorage(storage.BucketNotFound)
	app, out, _ := newTestApp(testConfig(dir), store)

	code := app.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	assert.Empty(t, store.uploads)
	assert.Contains(t, out.String(), "Please create the bucket first using:")
	assert.Contains(t, out.String(), "aws s3 mb s3://lakehouseyelp --region us-east-1")
	assert.NotContains(t, out.String(), "Process completed!")
}

func TestApp_Run_BucketForbidden(t *testing.T) {
	dir := t.TempDir()
	makeFile(t, dir, "business.json", 100)
	store := newFakeStorage(storage.BucketForbidden)
	app, out, _ := newTestApp(testConfig(dir), store)

	code := app.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	assert.Empty(t, store.uploads)
	assert.Contains(t, out.String(), "You do not have permission to access bucket 'lakehouseyelp'")
}

func TestApp_Run_NoFiles_NoNetwork(t *testing.T) {
	store := newFakeStorage(storage.BucketAccessible)
	app, out, _ := newTestApp(testConfig(t.TempDir()), store)

	code := app.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	assert.Zero(t, store.calls())
	assert.Contains(t, out.String(), "No files matching '*.json' found")
}

func TestApp_Run_ThreeFiles(t *testing.T) {
	dir := t.TempDir()
	makeFile(t, dir, "business.json", 1024*1024)
	makeFile(t, dir, "empty.json", 0)
	makeFile(t, dir, "review.json", 500*1024*1024)
	makeFile(t, dir, "ignored.csv", 10)

	store := newFakeStorage(storage.BucketAccessible)
	store.failures["raw/empty.json"] = errors.New("connection reset by peer")
	app, out, _ := newTestApp(testConfig(dir), store)

	code := app.Run(context.Background())

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, 1, store.checks)
	require.Len(t, store.uploads, 3)
	assert.Equal(t, "raw/business.json", store.uploads[0].Key)
	assert.Equal(t, "raw/empty.json", store.uploads[1].Key)
	assert.Equal(t, "raw/review.json", store.uploads[2].Key)

	s := out.String()
	assert.Contains(t, s, "Uploading business.json (1.00 MB)...")
	assert.Contains(t, s, "Uploading empty.json (0.00 MB)...")
	assert.Contains(t, s, "Uploading review.json (500.00 MB)...")
	assert.Contains(t, s, "✗ Unexpected error uploading empty.json")
	assert.Contains(t, s, "✓ review.json uploaded successfully")
	assert.Contains(t, s, "Process completed!")
}

func TestNewStorage_SelectsBackend(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Backend = config.BackendMinio
	cfg.BaseEndpoint = "http://127.0.0.1:9000"

	store, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MinioStorage{}, store)

	cfg.Backend = config.BackendS3
	store, err = NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, store)
}

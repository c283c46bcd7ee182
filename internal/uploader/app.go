package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/config"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/storage"
)

// Process exit codes.
const (
	ExitOK                 = 0
	ExitMissingCredentials = 1
	ExitConfigError        = 2
)

// StorageFactory builds the storage backend once credentials are known.
type StorageFactory func(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error)

// NewStorage picks the backend named by cfg.Backend.
func NewStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	opts := storage.Options{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          cfg.Region,
		BaseEndpoint:    cfg.BaseEndpoint,
		UsePathStyle:    cfg.UsePathStyle,
	}

	switch cfg.Backend {
	case config.BackendMinio:
		return storage.NewMinioStorage(opts)
	default:
		return storage.NewS3Storage(ctx, opts)
	}
}

type App struct {
	config     *config.Config
	out        io.Writer
	logger     logging.Logger
	newStorage StorageFactory
}

func NewApp(c *config.Config, out io.Writer, logger logging.Logger) *App {
	return &App{config: c, out: out, logger: logger, newStorage: NewStorage}
}

// WithStorageFactory replaces the backend constructor.
func (a *App) WithStorageFactory(f StorageFactory) *App {
	a.newStorage = f
	return a
}

// Run performs one upload session and returns the process exit code.
// Only configuration problems produce a non-zero code; bucket and per-file
// failures are reported and the run still completes.
func (a *App) Run(ctx context.Context) int {
	a.banner()

	if err := a.config.Validate(); err != nil {
		if errors.Is(err, common.ErrMissingCredentials) {
			fmt.Fprintln(a.out, "✗ Error: AWS credentials are not configured.")
			fmt.Fprintln(a.out, "  Make sure the .env file defines AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
			a.logger.Error(ctx, "missing credentials", "error", err)
			return ExitMissingCredentials
		}
		fmt.Fprintf(a.out, "✗ Error: %v\n", err)
		return ExitConfigError
	}

	store, err := a.newStorage(ctx, a.config)
	if err != nil {
		fmt.Fprintf(a.out, "✗ Error creating storage client: %v\n", err)
		a.logger.Error(ctx, "storage client init failed", "error", err)
		return ExitConfigError
	}

	files, err := Discover(a.config.Dir, a.config.Pattern)
	if err != nil {
		fmt.Fprintf(a.out, "✗ Error listing files: %v\n", err)
		return ExitConfigError
	}

	u := New(store, a.config, a.out, a.logger)

	// Nothing to send means nothing to ask the provider either.
	if len(files) == 0 {
		u.UploadAll(ctx, files)
		return ExitOK
	}

	status := u.VerifyBucket(ctx)
	if status != storage.BucketAccessible {
		u.PrintBucketHint(status)
		return ExitOK
	}

	u.UploadAll(ctx, files)
	fmt.Fprintln(a.out, "\nProcess completed!")
	return ExitOK
}

func (a *App) banner() {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(a.out, line)
	fmt.Fprintln(a.out, "UPLOAD JSON FILES TO OBJECT STORAGE")
	fmt.Fprintln(a.out, line)
	fmt.Fprintln(a.out)
}

// Package config handles configuration for the uploader, including
// defaults, a dotenv/environment layer, a JSON overlay and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
)

const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config holds runtime settings for one uploader invocation. It is built
// once at startup and handed to the bucket check and the upload loop.
//
// Fields:
//   - AccessKeyID / SecretAccessKey / Region: object storage credentials.
//   - Bucket / KeyPrefix: destination; each file lands at KeyPrefix+name.
//   - Dir / Pattern: local files to push (glob evaluated inside Dir).
//   - ContentType: content type stamped on every object.
//   - BaseEndpoint / UsePathStyle / Backend: S3-compatible endpoint settings.
//   - UploadTimeout: per-file upload deadline, zero for none.
//   - LogLevel: level of the structured logger.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	KeyPrefix       string
	Dir             string
	Pattern         string
	ContentType     string
	BaseEndpoint    string
	UsePathStyle    bool
	Backend         string
	UploadTimeout   time.Duration
	LogLevel        string
}

// LoadDefaults populates Config with the values used when nothing else is set.
func (c *Config) LoadDefaults() {
	c.Region = "us-east-1"
	c.Bucket = "lakehouseyelp"
	c.KeyPrefix = "raw/"
	c.Dir = defaultDir()
	c.Pattern = "*.json"
	c.ContentType = "application/json"
	c.Backend = BackendS3
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then the dotenv file and
// process environment, then an optional JSON file and finally flags found
// in args (usually os.Args[1:]). Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports common.ErrMissingCredentials when either key is absent
// and common.ErrInvalidConfig for settings no backend could work with.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", common.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.UploadTimeout < 0 {
		return fmt.Errorf("%w: negative upload timeout", common.ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is empty", common.ErrInvalidConfig)
	}
	switch c.Backend {
	case BackendS3:
	case BackendMinio:
		if c.BaseEndpoint == "" {
			return fmt.Errorf("%w: minio backend needs an endpoint", common.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", common.ErrInvalidConfig, c.Backend)
	}
	return nil
}

// defaultDir is the directory holding the running executable, falling back
// to the working directory.
func defaultDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

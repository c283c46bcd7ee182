package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/lakehouse/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   access key id
//	-p string   secret access key
//	-g string   region
//	-b string   bucket name
//	-k string   key prefix (e.g. "raw/")
//	-d string   directory to scan
//	-m string   file pattern (e.g. "*.json")
//	-e string   base endpoint of an S3-compatible service
//	-s          use path-style addressing
//	-x string   storage backend: s3 or minio
//	-t duration per-file upload timeout (e.g. "10m")
//	-l string   log level
//
// -c/-config and -envfile are consumed by the earlier layers and filtered out here.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-u", "-p", "-g", "-b", "-k", "-d", "-m", "-e", "-s", "-x", "-t", "-l"})

	fs := flag.NewFlagSet("uploader", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.AccessKeyID, "u", config.AccessKeyID, "access key id")
	fs.StringVar(&config.SecretAccessKey, "p", config.SecretAccessKey, "secret access key")
	fs.StringVar(&config.Region, "g", config.Region, "region")
	fs.StringVar(&config.Bucket, "b", config.Bucket, "destination bucket")
	fs.StringVar(&config.KeyPrefix, "k", config.KeyPrefix, "object key prefix")
	fs.StringVar(&config.Dir, "d", config.Dir, "directory to scan")
	fs.StringVar(&config.Pattern, "m", config.Pattern, "file pattern")
	fs.StringVar(&config.BaseEndpoint, "e", config.BaseEndpoint, "base endpoint")
	fs.BoolVar(&config.UsePathStyle, "s", config.UsePathStyle, "use path-style addressing")
	fs.StringVar(&config.Backend, "x", config.Backend, "storage backend (s3|minio)")
	fs.DurationVar(&config.UploadTimeout, "t", config.UploadTimeout, "per-file upload timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}

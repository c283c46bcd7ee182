package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (".env" unless -envfile is given) into the
// process environment and then copies the recognised variables into config.
// godotenv never overrides variables that are already set, so the real
// environment wins over the file. A missing default file is not an error.
func parseEnv(config *Config, args []string) error {
	path := flagx.EnvFileFlags(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	setString(&config.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&config.Region, "AWS_DEFAULT_REGION")
	setString(&config.BaseEndpoint, "AWS_ENDPOINT_URL")
	setString(&config.Bucket, "UPLOADER_BUCKET")
	setString(&config.KeyPrefix, "UPLOADER_KEY_PREFIX")
	setString(&config.Pattern, "UPLOADER_PATTERN")
	setString(&config.Dir, "UPLOADER_DIR")
	setString(&config.Backend, "UPLOADER_BACKEND")
	setString(&config.LogLevel, "UPLOADER_LOG_LEVEL")

	if v, ok := os.LookupEnv("UPLOADER_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		config.UsePathStyle = b
	}

	if v, ok := os.LookupEnv("UPLOADER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		config.UploadTimeout = d
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

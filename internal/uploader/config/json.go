package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lakehouse/internal/flagx"
	"github.com/dmitrijs2005/lakehouse/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields distinguish "absent" from "empty", so only keys present in the file
// override earlier layers.
type JsonConfig struct {
	AccessKeyID     *string         `json:"access_key_id"`
	SecretAccessKey *string         `json:"secret_access_key"`
	Region          *string         `json:"region"`
	Bucket          *string         `json:"bucket"`
	KeyPrefix       *string         `json:"key_prefix"`
	Dir             *string         `json:"dir"`
	Pattern         *string         `json:"pattern"`
	BaseEndpoint    *string         `json:"base_endpoint"`
	UsePathStyle    *bool           `json:"use_path_style"`
	Backend         *string         `json:"backend"`
	UploadTimeout   *timex.Duration `json:"upload_timeout"`
	LogLevel        *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	overlay(&config.AccessKeyID, c.AccessKeyID)
	overlay(&config.SecretAccessKey, c.SecretAccessKey)
	overlay(&config.Region, c.Region)
	overlay(&config.Bucket, c.Bucket)
	overlay(&config.KeyPrefix, c.KeyPrefix)
	overlay(&config.Dir, c.Dir)
	overlay(&config.Pattern, c.Pattern)
	overlay(&config.BaseEndpoint, c.BaseEndpoint)
	overlay(&config.UsePathStyle, c.UsePathStyle)
	overlay(&config.Backend, c.Backend)
	overlay(&config.LogLevel, c.LogLevel)
	if c.UploadTimeout != nil {
		config.UploadTimeout = c.UploadTimeout.Duration
	}

	return nil
}

func overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Package config loads pipeline settings from defaults, an optional YAML or
// JSON file, a .env file and PIPELINE_* environment variables (highest wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/definition"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "PIPELINE"
	defaultEnvFile = ".env"
)

type Connection struct {
	Host  string
	Token string
}

type Config struct {
	Owner        string
	LogLevel     string
	PollInterval time.Duration
	RetryDelay   time.Duration
	// DatabaseDSN selects the Postgres run store; empty keeps runs in memory.
	DatabaseDSN string
	JobIDs      map[string]int64
	Connections map[string]Connection
}

type Options struct {
	// ConfigFile is an optional YAML/JSON file.
	ConfigFile string
	// EnvFile must exist when set; the default .env may be absent.
	EnvFile string
}

func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	connKey := "connections." + definition.DefaultConnID
	if err := v.BindEnv(connKey+".host", envName(connKey+".host"), "DATABRICKS_HOST"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(connKey+".token", envName(connKey+".token"), "DATABRICKS_TOKEN"); err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", common.ErrInvalidConfig, opts.ConfigFile, err)
		}
	}

	cfg := &Config{
		Owner:       v.GetString("owner"),
		LogLevel:    v.GetString("log_level"),
		DatabaseDSN: v.GetString("database_dsn"),
		JobIDs:      make(map[string]int64),
		Connections: make(map[string]Connection),
	}

	poll, err := time.ParseDuration(v.GetString("poll_interval"))
	if err != nil || poll <= 0 {
		return nil, fmt.Errorf("%w: poll_interval %q must be a positive duration", common.ErrInvalidConfig, v.GetString("poll_interval"))
	}
	cfg.PollInterval = poll

	delay, err := time.ParseDuration(v.GetString("retry_delay"))
	if err != nil || delay <= 0 {
		return nil, fmt.Errorf("%w: retry_delay %q must be a positive duration", common.ErrInvalidConfig, v.GetString("retry_delay"))
	}
	cfg.RetryDelay = delay

	for _, id := range subKeys(v, "jobs", definition.TaskIDs()) {
		raw := v.GetString("jobs." + id)
		jobID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: jobs.%s: %q is not a job id", common.ErrInvalidConfig, id, raw)
		}
		cfg.JobIDs[id] = jobID
	}

	for _, id := range subKeys(v, "connections", []string{definition.DefaultConnID}) {
		cfg.Connections[id] = Connection{
			Host:  v.GetString("connections." + id + ".host"),
			Token: v.GetString("connections." + id + ".token"),
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("owner", definition.DefaultOwner)
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("retry_delay", "5m")
	v.SetDefault("database_dsn", "")
	for id, jobID := range definition.DefaultJobIDs {
		v.SetDefault("jobs."+id, jobID)
	}
	v.SetDefault("connections."+definition.DefaultConnID+".host", "")
	v.SetDefault("connections."+definition.DefaultConnID+".token", "")
}

func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, defaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, path, err)
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// subKeys returns the sorted union of known and the keys found under
// prefix in the file.
func subKeys(v *viper.Viper, prefix string, known []string) []string {
	set := make(map[string]struct{})
	for _, k := range known {
		set[k] = struct{}{}
	}
	for k := range v.GetStringMap(prefix) {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package config loads sampleregistry settings.
//
// Settings come from an optional YAML file (--config flag or
// SAMPLEREGISTRY_CONFIG) and are then overridden by environment variables:
//
//	SAMPLEREGISTRY_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SAMPLEREGISTRY_SQLITE_PATH: path to sqlite file (default ./sampleregistry.db)
//	SAMPLEREGISTRY_POSTGRES_DSN: postgres DSN when driver=postgres
//	SAMPLEREGISTRY_BLOB_DRIVER: fs|s3|memory (default fs)
//	SAMPLEREGISTRY_BLOB_FS_ROOT: directory root when blob driver=fs (default ./blobdata)
//	SAMPLEREGISTRY_BLOB_S3_BUCKET: bucket when blob driver=s3 (required)
//	SAMPLEREGISTRY_BLOB_S3_REGION: region (default us-east-1)
//	SAMPLEREGISTRY_BLOB_S3_ENDPOINT: custom endpoint, e.g. MinIO
//	SAMPLEREGISTRY_BLOB_S3_PATH_STYLE: true|false
//	SAMPLEREGISTRY_LOG_LEVEL: debug|info|warn|error (default info)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "SAMPLEREGISTRY_CONFIG"

// StorageDriver identifies a registry persistence backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// BlobDriver identifies an export artifact backend.
type BlobDriver string

const (
	BlobFilesystem BlobDriver = "fs"
	BlobS3         BlobDriver = "s3"
	BlobMemory     BlobDriver = "memory"
)

// Config is the top-level configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and configures the registry store.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// BlobConfig selects and configures where exported mapping files are kept.
type BlobConfig struct {
	Driver BlobDriver `yaml:"driver"`
	FSRoot string     `yaml:"fs_root"`
	S3     S3Config   `yaml:"s3"`
}

// S3Config configures the S3 blob driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageSQLite, SQLitePath: "sampleregistry.db"},
		Blob:    BlobConfig{Driver: BlobFilesystem, FSRoot: "./blobdata", S3: S3Config{Region: "us-east-1"}},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables resolved by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("SAMPLEREGISTRY_STORAGE_DRIVER"); ok && v != "" {
		c.Storage.Driver = StorageDriver(v)
	}
	str("SAMPLEREGISTRY_SQLITE_PATH", &c.Storage.SQLitePath)
	str("SAMPLEREGISTRY_POSTGRES_DSN", &c.Storage.PostgresDSN)
	if v, ok := lookup("SAMPLEREGISTRY_BLOB_DRIVER"); ok && v != "" {
		c.Blob.Driver = BlobDriver(v)
	}
	str("SAMPLEREGISTRY_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("SAMPLEREGISTRY_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("SAMPLEREGISTRY_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("SAMPLEREGISTRY_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	if v, ok := lookup("SAMPLEREGISTRY_BLOB_S3_PATH_STYLE"); ok {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	str("SAMPLEREGISTRY_LOG_LEVEL", &c.Log.Level)
}

// Resolve loads path (or the file named by SAMPLEREGISTRY_CONFIG when path
// is empty), applies the process environment and validates the result.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports unknown drivers and missing required settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel converts the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

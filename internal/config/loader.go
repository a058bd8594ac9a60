package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Storage providers understood by the objectstore package.
const (
	ProviderGCS        = "gcs"
	ProviderS3         = "s3"
	ProviderFilesystem = "filesystem"
)

// Config represents the top-level YAML configuration file.
type Config struct {
	Include   []string        `mapstructure:"include"   yaml:"include,omitempty"`
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"   yaml:"mongodb"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"  yaml:"schedule"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	OutputDirectory string        `mapstructure:"output_directory" yaml:"output_directory"`
	TimestampFormat string        `mapstructure:"timestamp_format" yaml:"timestamp_format"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	// Collections overrides the built-in catalog when non-empty.
	Collections []string `mapstructure:"collections" yaml:"collections,omitempty"`
}

// RetentionConfig specifies how many backups of each type to keep.
type RetentionConfig struct {
	KeepScheduled   int `mapstructure:"keep_scheduled"   yaml:"keep_scheduled"`
	KeepIncremental int `mapstructure:"keep_incremental" yaml:"keep_incremental"`
	// KeepWeekly is accepted but not acted upon yet.
	KeepWeekly int `mapstructure:"keep_weekly" yaml:"keep_weekly,omitempty"`
}

// MongoDBConfig holds the document store connection settings.
type MongoDBConfig struct {
	URI      string        `mapstructure:"uri"      yaml:"uri"`
	Database string        `mapstructure:"database" yaml:"database"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
	Vault    VaultPaths    `mapstructure:"vault"    yaml:"vault"`
}

// VaultPaths holds the KV and dynamic role paths under the Vault mount.
type VaultPaths struct {
	KVPath   string `mapstructure:"kv_path"   yaml:"kv_path,omitempty"`
	RolePath string `mapstructure:"role_path" yaml:"role_path,omitempty"`
}

// StorageConfig selects and configures the object store receiving archives.
type StorageConfig struct {
	Provider        string `mapstructure:"provider"         yaml:"provider"`
	Bucket          string `mapstructure:"bucket"           yaml:"bucket,omitempty"`
	Prefix          string `mapstructure:"prefix"           yaml:"prefix,omitempty"`
	Endpoint        string `mapstructure:"endpoint"         yaml:"endpoint,omitempty"`
	Region          string `mapstructure:"region"           yaml:"region,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id"    yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	UseSSL          bool   `mapstructure:"use_ssl"          yaml:"use_ssl"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	Directory       string `mapstructure:"directory"        yaml:"directory,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// ScheduleConfig drives the long-running `bacli schedule` command.
type ScheduleConfig struct {
	Cron          string `mapstructure:"cron"           yaml:"cron"`
	MetricsListen string `mapstructure:"metrics_listen" yaml:"metrics_listen,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"       yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backup.output_directory", os.TempDir())
	v.SetDefault("backup.timestamp_format", "20060102_150405")
	v.SetDefault("backup.timeout", 10*time.Minute)
	v.SetDefault("backup.concurrency", 4)
	v.SetDefault("retention.keep_scheduled", 7)
	v.SetDefault("retention.keep_incremental", 50)
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.timeout", 30*time.Second)
	v.SetDefault("storage.provider", ProviderFilesystem)
	v.SetDefault("schedule.cron", "0 2 * * *")
	v.SetDefault("log.level", "info")
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("bacli")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate checks the values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.MongoDB.Database == "" {
		return fmt.Errorf("%w: mongodb.database is required", ErrValidateConfig)
	}
	if c.Retention.KeepScheduled < 0 || c.Retention.KeepIncremental < 0 {
		return fmt.Errorf("%w: retention counts must not be negative", ErrValidateConfig)
	}
	if c.Backup.Concurrency < 1 {
		return fmt.Errorf("%w: backup.concurrency must be at least 1", ErrValidateConfig)
	}

	switch c.Storage.Provider {
	case ProviderGCS, ProviderS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for %s", ErrValidateConfig, c.Storage.Provider)
		}
	case ProviderFilesystem:
		if c.Storage.Directory == "" {
			return fmt.Errorf("%w: storage.directory is required for filesystem", ErrValidateConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage provider %q", ErrValidateConfig, c.Storage.Provider)
	}
	return nil
}

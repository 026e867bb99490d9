// Package config loads the s3journal configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (S3JOURNAL_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/s3journal/internal/bytesize"
	"github.com/marmos91/s3journal/pkg/journal"
	"github.com/marmos91/s3journal/pkg/journal/objectstore"
)

// Config is the s3journal daemon configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the admin HTTP endpoint.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// S3 holds the object-store credentials and target bucket.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// Journal holds the pipeline settings.
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns the Prometheus registry on. Exposition happens on the
	// admin API's /metrics route.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// APIConfig configures the admin HTTP endpoint.
type APIConfig struct {
	// Enabled starts the admin listener in daemon mode.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the bind address, e.g. "127.0.0.1:8420".
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// S3Config holds object-store credentials and the target bucket.
type S3Config struct {
	// AccessKey and SecretKey are static credentials. Leave both empty to
	// use the SDK's default credential chain.
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// Region of the bucket.
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ForcePathStyle addresses the bucket as a path segment; most
	// S3-compatible stores need it.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// Bucket is the target bucket.
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
}

// JournalConfig holds the pipeline settings.
type JournalConfig struct {
	// DirectoryFormat is the time-partition pattern, optionally led by a
	// quoted literal prefix: "yyyy/MM/dd" or "'archive'/yyyy/MM/dd".
	DirectoryFormat string `mapstructure:"directory_format" yaml:"directory_format"`

	// LocalDirectory hosts the durable queue.
	LocalDirectory string `mapstructure:"local_directory" validate:"required" yaml:"local_directory"`

	// Compressor is identity, gzip, snappy, bzip2, lzo or zstd.
	Compressor string `mapstructure:"compressor" validate:"omitempty,oneof=identity none gzip snappy bzip2 lzo zstd" yaml:"compressor"`

	// Delimiter is appended after every record; NoDelimiter disables it.
	Delimiter   string `mapstructure:"delimiter" yaml:"delimiter"`
	NoDelimiter bool   `mapstructure:"no_delimiter" yaml:"no_delimiter"`

	// Sized prefixes every record with its big-endian 32-bit length.
	Sized bool `mapstructure:"sized" yaml:"sized"`

	// Fsync syncs every durable-queue put. Defaults to true.
	Fsync bool `mapstructure:"fsync" yaml:"fsync"`

	// Suffix overrides the object-key suffix derived from the compressor.
	Suffix string `mapstructure:"suffix" yaml:"suffix"`

	// ID is baked into object keys. Defaults to the local hostname.
	ID string `mapstructure:"id" yaml:"id"`

	// MaxQueueSize caps accepted-but-not-uploaded records.
	MaxQueueSize int `mapstructure:"max_queue_size" validate:"omitempty,gt=0" yaml:"max_queue_size"`

	// MaxBatchSize and MaxBatchLatency bound the batcher.
	MaxBatchSize    int           `mapstructure:"max_batch_size" validate:"omitempty,gt=0" yaml:"max_batch_size"`
	MaxBatchLatency time.Duration `mapstructure:"max_batch_latency" yaml:"max_batch_latency"`

	// Expiration reclaims stranded multipart uploads older than this.
	Expiration time.Duration `mapstructure:"expiration" yaml:"expiration"`

	// Shards fans writes out across independent journals.
	Shards int `mapstructure:"shards" validate:"min=0,max=36" yaml:"shards"`

	// MinPartSize, MaxPartSize and MaxPartsPerObject override the S3 part
	// rules. Leave zero for the real limits; shrink only against stores
	// that allow it.
	MinPartSize       bytesize.ByteSize `mapstructure:"min_part_size" yaml:"min_part_size"`
	MaxPartSize       bytesize.ByteSize `mapstructure:"max_part_size" yaml:"max_part_size"`
	MaxPartsPerObject int               `mapstructure:"max_parts_per_object" validate:"omitempty,gt=0" yaml:"max_parts_per_object"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// ToOptions maps the configuration onto journal.Options. The metrics
// implementation is injected by the caller so this package stays free of
// the Prometheus dependency.
func (c *Config) ToOptions(m journal.Metrics) journal.Options {
	opts := journal.Options{
		S3: objectstore.S3Config{
			AccessKey:      c.S3.AccessKey,
			SecretKey:      c.S3.SecretKey,
			Region:         c.S3.Region,
			Endpoint:       c.S3.Endpoint,
			ForcePathStyle: c.S3.ForcePathStyle,
			Bucket:         c.S3.Bucket,
		},
		DirectoryFormat: c.Journal.DirectoryFormat,
		LocalDirectory:  c.Journal.LocalDirectory,
		Compressor:      c.Journal.Compressor,
		Delimiter:       c.Journal.Delimiter,
		NoDelimiter:     c.Journal.NoDelimiter,
		Sized:           c.Journal.Sized,
		DisableFsync:    !c.Journal.Fsync,
		Suffix:          c.Journal.Suffix,
		ID:              c.Journal.ID,
		MaxQueueSize:    c.Journal.MaxQueueSize,
		MaxBatchSize:    c.Journal.MaxBatchSize,
		MaxBatchLatency: c.Journal.MaxBatchLatency,
		Expiration:      c.Journal.Expiration,
		Shards:          c.Journal.Shards,
		Metrics:         m,
	}

	if c.Journal.MinPartSize > 0 || c.Journal.MaxPartSize > 0 || c.Journal.MaxPartsPerObject > 0 {
		lim := objectstore.DefaultLimits()
		if c.Journal.MinPartSize > 0 {
			lim.MinPartSize = c.Journal.MinPartSize.Int64()
		}
		if c.Journal.MaxPartSize > 0 {
			lim.MaxPartSize = c.Journal.MaxPartSize.Int64()
		}
		if c.Journal.MaxPartsPerObject > 0 {
			lim.MaxPartsPerObject = int64(c.Journal.MaxPartsPerObject)
		}
		opts.Limits = lim
	}

	if m != nil {
		opts.S3.Metrics = m
	}

	return opts
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry object-store credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables and the config file search.
// Environment variables use the S3JOURNAL_ prefix with underscores, e.g.
// S3JOURNAL_JOURNAL_LOCAL_DIRECTORY=/var/lib/s3journal.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("S3JOURNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The one default-true boolean: it must live in viper so an omitted key
	// is distinguishable from an explicit false.
	v.SetDefault("journal.fsync", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the custom type hooks.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can say "5Mi" or 5242880.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration so config files can
// say "30s" or "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/s3journal, falling back to
// ~/.config/s3journal.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "s3journal")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "s3journal")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills unspecified configuration fields with their defaults.
// Zero values are replaced; explicit values are preserved. Fsync defaults
// through viper instead (see setupViper) so an omitted key stays
// distinguishable from an explicit false.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyAPIDefaults(&cfg.API)
	applyJournalDefaults(&cfg.Journal)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8420"
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.DirectoryFormat == "" {
		cfg.DirectoryFormat = "yyyy/MM/dd"
	}
	if cfg.Compressor == "" {
		cfg.Compressor = "identity"
	}
	if cfg.Delimiter == "" && !cfg.NoDelimiter {
		cfg.Delimiter = "\n"
	}
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = 65536
	}
	if cfg.MaxBatchLatency == 0 {
		cfg.MaxBatchLatency = 60 * time.Second
	}
}

// GetDefaultConfig returns a fully-defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Journal.Fsync = true
	ApplyDefaults(cfg)
	return cfg
}

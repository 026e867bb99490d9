// Package commands implements the s3journal CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "s3journal",
	Short: "s3journal - reliable journaling to S3-compatible object storage",
	Long: `s3journal batches records, persists them to a crash-safe local queue,
and streams them to time-partitioned objects using S3's multipart upload
API. Once a batch is flushed to the local queue, its records survive
process crashes and upload exactly once.

Use "s3journal [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/s3journal/config.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}

// InitLogger configures the process logger from the loaded config.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

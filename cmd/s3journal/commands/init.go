package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/s3journal/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample s3journal configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/s3journal/config.yaml. Use --config for a custom path.

Examples:
  # Initialize with default location
  s3journal init

  # Initialize with custom path
  s3journal init --config /etc/s3journal/config.yaml

  # Force overwrite existing config
  s3journal init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

// sampleConfig is the commented starter configuration.
const sampleConfig = `# s3journal configuration

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text or json
  output: stderr     # stdout, stderr, or a file path

metrics:
  enabled: false

api:
  enabled: false
  listen: 127.0.0.1:8420

s3:
  # Leave access_key/secret_key empty to use the SDK default chain.
  access_key: ""
  secret_key: ""
  region: us-east-1
  bucket: my-journal-bucket
  # endpoint: http://127.0.0.1:9000   # for S3-compatible stores
  # force_path_style: true

journal:
  # Optional quoted literal becomes the bucket prefix:
  # directory_format: "'archive'/yyyy/MM/dd"
  directory_format: yyyy/MM/dd

  # Durable queue directory; owned exclusively by this journal.
  local_directory: /var/lib/s3journal

  compressor: identity   # identity, gzip, snappy, bzip2, lzo, zstd
  # delimiter: "\n"
  # sized: false         # prefix each record with its 32-bit length
  fsync: true

  # id: ""               # defaults to the local hostname
  max_queue_size: 65536
  # max_batch_size: 0    # records; 0 = bounded by latency only
  max_batch_latency: 60s

  # expiration: 168h     # reclaim stranded uploads older than this
  # shards: 0            # fan out across N independent journals (max 36)
`

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration (bucket, credentials, local_directory)")
	fmt.Println("  2. Pipe records into the daemon: tail -F app.log | s3journal start")
	return nil
}

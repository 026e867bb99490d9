package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/api"
	"github.com/marmos91/s3journal/pkg/config"
	"github.com/marmos91/s3journal/pkg/journal"
	"github.com/marmos91/s3journal/pkg/metrics"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/s3journal/pkg/metrics/prometheus"
)

// maxRecordSize bounds one stdin line; lines are records, so this is the
// record size cap of the daemon.
const maxRecordSize = 16 * 1024 * 1024

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the journaling daemon",
	Long: `Run the journaling daemon: read newline-delimited records from stdin,
journal them to S3, and expose the admin API when enabled.

The daemon exits when stdin reaches EOF or on SIGINT/SIGTERM; either way it
closes the journal first, flushing open objects.

Examples:
  # Journal a log stream
  tail -F /var/log/app.log | s3journal start

  # With environment overrides
  S3JOURNAL_LOGGING_LEVEL=DEBUG s3journal start --config ./config.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	j, err := journal.Open(ctx, cfg.ToOptions(metrics.NewJournalMetrics()))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.Listen, j)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Admin API failed", "error", err)
			}
		}()
	}

	// The reader goroutine feeds stdin into the journal; done closes when
	// stdin is exhausted.
	done := make(chan error, 1)
	go func() {
		done <- journalStdin(j)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down on signal", "signal", sig.String())
	case err := <-done:
		if err != nil {
			logger.Error("Record intake failed", "error", err)
		} else {
			logger.Info("Input exhausted; shutting down")
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin API shutdown failed", "error", err)
		}
		cancel()
	}

	if err := j.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	stats := j.Stats()
	logger.Info("Daemon stopped",
		"enqueued", stats.Enqueued,
		"uploaded", stats.Uploaded,
		"dropped", stats.Dropped)
	return nil
}

// journalStdin submits stdin lines as records, backing off briefly while
// the journal is at capacity so a fast producer slows down instead of
// losing data.
func journalStdin(j journal.Journal) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)

	for scanner.Scan() {
		record := append([]byte(nil), scanner.Bytes()...)

		for {
			accepted, err := j.Put(record)
			if err != nil {
				return err
			}
			if accepted {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	return scanner.Err()
}

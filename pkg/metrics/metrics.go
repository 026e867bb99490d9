// Package metrics hosts the process-wide Prometheus registry gate.
//
// Metrics are opt-in: nothing is registered until InitRegistry runs, and
// constructors return nil collectors when it has not, which the journal
// treats as zero-overhead no-ops. The Prometheus implementation lives in the
// prometheus subpackage and registers its constructor here during package
// initialization, keeping the client_golang dependency out of the journal
// core.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/s3journal/pkg/journal"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection. Safe to call more than once.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler returns the exposition handler for the admin API. When metrics
// are disabled it serves 404.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewJournalMetrics creates the Prometheus-backed journal metrics, or nil
// when metrics are disabled. A nil result is safe to put into
// journal.Options.
func NewJournalMetrics() journal.Metrics {
	if !IsEnabled() || newPrometheusJournalMetrics == nil {
		return nil
	}
	return newPrometheusJournalMetrics()
}

// newPrometheusJournalMetrics is installed by pkg/metrics/prometheus during
// its package initialization. The indirection avoids an import cycle while
// keeping this package's API flat.
var newPrometheusJournalMetrics func() journal.Metrics

// RegisterJournalMetricsConstructor installs the Prometheus constructor.
func RegisterJournalMetricsConstructor(constructor func() journal.Metrics) {
	newPrometheusJournalMetrics = constructor
}

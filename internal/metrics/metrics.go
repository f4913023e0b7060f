// Package metrics exposes Prometheus collectors for patch application and
// integration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	patchesAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycelium_patches_applied_total",
		Help: "Patches applied, by target",
	}, []string{"target"})

	patchesRolledBackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycelium_patches_rolled_back_total",
		Help: "Patches rolled back, by target",
	}, []string{"target"})

	patchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycelium_patch_failures_total",
		Help: "Failed apply or rollback attempts, by reason",
	}, []string{"reason"})

	noopOperationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mycelium_noop_operations_total",
		Help: "Add or remove operations that did not change the graph",
	})

	integrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mycelium_integrations_total",
		Help: "Integration runs, by outcome",
	}, []string{"outcome"})

	integrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mycelium_integration_duration_seconds",
		Help:    "Duration of integration runs",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	lockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mycelium_target_lock_wait_seconds",
		Help:    "Time spent waiting for target locks",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	})

	openViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mycelium_open_violations",
		Help: "Open violations, by target",
	}, []string{"target"})

	archiveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mycelium_snapshot_archive_failures_total",
		Help: "Graph snapshots that could not be archived",
	})
)

func PatchApplied(target string)    { patchesAppliedTotal.WithLabelValues(target).Inc() }
func PatchRolledBack(target string) { patchesRolledBackTotal.WithLabelValues(target).Inc() }
func PatchFailed(reason string)     { patchFailuresTotal.WithLabelValues(reason).Inc() }
func NoopOperation()                { noopOperationsTotal.Inc() }
func ArchiveFailed()                { archiveFailuresTotal.Inc() }

// IntegrationFinished records the outcome and duration of one integrate call.
func IntegrationFinished(outcome string, elapsed time.Duration) {
	integrationsTotal.WithLabelValues(outcome).Inc()
	integrationDuration.Observe(elapsed.Seconds())
}

func LockWaited(elapsed time.Duration) { lockWaitDuration.Observe(elapsed.Seconds()) }

func SetOpenViolations(target string, n int) {
	openViolations.WithLabelValues(target).Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

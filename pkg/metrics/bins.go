package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BinMetrics records reconciliation and lifecycle activity.
type BinMetrics struct {
	reconciliations *prometheus.CounterVec
	failures        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	releases        *prometheus.CounterVec
	calibrations    prometheus.Counter
	printJobs       *prometheus.CounterVec
	scanDuration    prometheus.Histogram
}

// NewBinMetrics registers the bin metrics on the provided registerer.
func NewBinMetrics(reg prometheus.Registerer) *BinMetrics {
	if reg == nil {
		return &BinMetrics{}
	}
	m := &BinMetrics{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bintrack_component_reconciliations_total",
			Help: "Component reconciliations by discrepancy outcome.",
		}, []string{"discrepancy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bintrack_component_failures_total",
			Help: "Component-level scan failures by error code.",
		}, []string{"code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bintrack_bin_transitions_total",
			Help: "Bin lifecycle transitions.",
		}, []string{"from", "to"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bintrack_release_outcomes_total",
			Help: "Release candidates by outcome.",
		}, []string{"outcome"}),
		calibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bintrack_unit_weight_calibrations_total",
			Help: "Component master unit weight calibrations applied.",
		}),
		printJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bintrack_print_jobs_total",
			Help: "Print jobs by resulting status.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bintrack_scan_save_duration_seconds",
			Help:    "Duration of save-scan operations.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.reconciliations, m.failures, m.transitions, m.releases, m.calibrations, m.printJobs, m.scanDuration)
	return m
}

func (m *BinMetrics) IncReconciliation(discrepancy string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	if discrepancy == "" {
		discrepancy = "unreconciled"
	}
	m.reconciliations.WithLabelValues(discrepancy).Inc()
}

func (m *BinMetrics) IncFailure(code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncTransition counts a status change. Unchanged statuses are ignored.
func (m *BinMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *BinMetrics) IncRelease(outcome string) {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *BinMetrics) IncCalibration() {
	if m == nil || m.calibrations == nil {
		return
	}
	m.calibrations.Inc()
}

// IncPrintJob counts print jobs queued by the worker and acknowledged by
// print stations.
func (m *BinMetrics) IncPrintJob(status string) {
	if m == nil || m.printJobs == nil {
		return
	}
	m.printJobs.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *BinMetrics) ObserveScan(duration time.Duration) {
	if m == nil || m.scanDuration == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusBusy    = "busy"
)

// SyncMetrics records sync outcomes. A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	runs      *prometheus.CounterVec
	documents *prometheus.CounterVec
	folders   *prometheus.CounterVec
	duration  prometheus.Histogram
}

// RunCounts mirrors the counters of one sync run.
type RunCounts struct {
	FoldersCreated, FoldersUpdated, FoldersRemoved int

	DocsCreated, DocsConverted, DocsUploaded, DocsUpdated, DocsSkipped int

	Errors int
}

// NewSyncMetrics creates and registers the collectors.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drivemirror",
				Name:      "sync_runs_total",
				Help:      "Sync runs by final status.",
			},
			[]string{"status"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drivemirror",
				Name:      "sync_documents_total",
				Help:      "Remote files processed by outcome.",
			},
			[]string{"outcome"},
		),
		folders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drivemirror",
				Name:      "sync_folders_total",
				Help:      "Folder changes by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drivemirror",
			Name:      "sync_duration_seconds",
			Help:      "Wall time of completed sync runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.documents, m.folders, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRun records a finished run.
func (m *SyncMetrics) ObserveRun(success bool, counts RunCounts, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(elapsed.Seconds())

	m.folders.WithLabelValues("created").Add(float64(counts.FoldersCreated))
	m.folders.WithLabelValues("updated").Add(float64(counts.FoldersUpdated))
	m.folders.WithLabelValues("removed").Add(float64(counts.FoldersRemoved))

	m.documents.WithLabelValues("created").Add(float64(counts.DocsCreated))
	m.documents.WithLabelValues("converted").Add(float64(counts.DocsConverted))
	m.documents.WithLabelValues("uploaded").Add(float64(counts.DocsUploaded))
	m.documents.WithLabelValues("updated").Add(float64(counts.DocsUpdated))
	m.documents.WithLabelValues("skipped").Add(float64(counts.DocsSkipped))
	m.documents.WithLabelValues("error").Add(float64(counts.Errors))
}

// RunRejected records a run that did not start because the tenant lease was held.
func (m *SyncMetrics) RunRejected() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(StatusBusy).Inc()
}

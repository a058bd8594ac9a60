// Package metrics instruments backup, restore and retention runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bacli"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics groups every collector the operations package updates.
type Metrics struct {
	Backups            *prometheus.CounterVec
	BackupDocuments    *prometheus.CounterVec
	BackupBytes        prometheus.Histogram
	RestoreCollections *prometheus.CounterVec
	Pruned             prometheus.Counter
	Throttled          prometheus.Counter
	UploadFailures     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Backup runs by type and result.",
		}, []string{"type", "result"}),
		BackupDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_documents_total",
			Help:      "Documents captured per collection.",
		}, []string{"collection"}),
		BackupBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_archive_bytes",
			Help:      "Compressed archive size.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
		RestoreCollections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_collections_total",
			Help:      "Restored collections by outcome.",
		}, []string{"status"}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_pruned_total",
			Help:      "History records removed by retention.",
		}),
		Throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incremental_throttled_total",
			Help:      "Incremental requests skipped by the cooldown.",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Archives that could not be uploaded to object storage.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Backups,
			m.BackupDocuments,
			m.BackupBytes,
			m.RestoreCollections,
			m.Pruned,
			m.Throttled,
			m.UploadFailures,
		)
	}
	return m
}

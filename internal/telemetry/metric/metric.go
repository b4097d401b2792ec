// Package metric provides Prometheus metrics for DocMesh.
//
// It exposes metrics for discovery activity, presence counts,
// synchronization runs and backup operations.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docmesh"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Discovery metrics
	AnnouncementsSent     prometheus.Counter
	AnnouncementsReceived prometheus.Counter
	AnnouncementsDropped  prometheus.Counter
	DevicesKnown          prometheus.Gauge
	DevicesOnline         prometheus.Gauge

	// Sync metrics
	SyncRuns        *prometheus.CounterVec
	DocumentsPushed prometheus.Counter
	DocumentsPulled prometheus.Counter
	SyncConflicts   prometheus.Counter
	SyncDuration    prometheus.Histogram

	// Backup metrics
	BackupsTaken prometheus.Counter
	Restores     prometheus.Counter
}

// NewRegistry creates a registry with all application metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		AnnouncementsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "announcements_sent_total",
			Help:      "Announcement datagrams broadcast by this device",
		}),
		AnnouncementsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "announcements_received_total",
			Help:      "Announcement datagrams received and applied",
		}),
		AnnouncementsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "announcements_dropped_total",
			Help:      "Datagrams dropped as malformed, oversized or self-announcements",
		}),
		DevicesKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_known",
			Help:      "Devices currently in the presence directory",
		}),
		DevicesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_online",
			Help:      "Devices currently reported online",
		}),

		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by terminal status",
		}, []string{"status"}),
		DocumentsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "documents_pushed_total",
			Help:      "Documents pushed to peers",
		}),
		DocumentsPulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "documents_pulled_total",
			Help:      "Documents pulled from peers",
		}),
		SyncConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "conflicts_total",
			Help:      "Conflicts detected during diffs",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of sync runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		BackupsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "snapshots_total",
			Help:      "Collection backups taken",
		}),
		Restores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "restores_total",
			Help:      "Collection restores applied",
		}),
	}

	r.reg.MustRegister(
		r.AnnouncementsSent,
		r.AnnouncementsReceived,
		r.AnnouncementsDropped,
		r.DevicesKnown,
		r.DevicesOnline,
		r.SyncRuns,
		r.DocumentsPushed,
		r.DocumentsPulled,
		r.SyncConflicts,
		r.SyncDuration,
		r.BackupsTaken,
		r.Restores,
	)

	return r
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Prometheus returns the underlying prometheus registry, for components
// that register their own collectors (e.g., the badger engine).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

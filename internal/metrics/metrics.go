package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rmtracer",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	tracerInserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rmtracer",
			Name:      "tracer_inserts_total",
			Help:      "Location-history records written.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rmtracer",
			Name:      "offline_queue_depth",
			Help:      "Mutations pending in the offline queue.",
		},
	)

	syncPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rmtracer",
			Name:      "sync_passes_total",
			Help:      "Drain passes executed by the sync engine.",
		},
	)

	syncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rmtracer",
			Name:      "sync_items_total",
			Help:      "Queued mutations processed, by outcome.",
		},
		[]string{"result"}, // synced, failed, dropped
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rmtracer",
			Name:      "database_backups_total",
			Help:      "Database backup attempts, by outcome.",
		},
		[]string{"result"}, // ok, failed
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, tracerInserts, queueDepth, syncPasses, syncItems, backups)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTracerInsert counts a written location record.
func IncTracerInsert() {
	tracerInserts.Inc()
}

// SetQueueDepth reports the current offline queue length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncSyncPass counts one drain pass.
func IncSyncPass() {
	syncPasses.Inc()
}

// IncSyncItem counts a processed mutation by outcome.
func IncSyncItem(result string) {
	syncItems.WithLabelValues(result).Inc()
}

// IncBackup counts a database backup attempt by outcome.
func IncBackup(result string) {
	backups.WithLabelValues(result).Inc()
}

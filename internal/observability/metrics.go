// Package observability exposes Prometheus collectors for ingestion, the
// review ledger, and CSV/XLSX imports.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "locale"

var (
	businessesUpserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "businesses_upserted_total",
		Help:      "Businesses written by ingestion, labeled by outcome (inserted, updated).",
	}, []string{"outcome"})

	elementsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "elements_dropped_total",
		Help:      "Overpass elements dropped for missing tags or coordinates.",
	})

	fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "fetch_failures_total",
		Help:      "Failed fetch-and-merge runs, labeled by error kind.",
	}, []string{"kind"})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "fetch_duration_seconds",
		Help:      "Wall time of a fetch-and-merge run.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	visitsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "visits_recorded_total",
		Help:      "Visit statuses recorded, labeled by status.",
	}, []string{"status"})

	importRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Imported rows, labeled by result (updated, skipped).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(businessesUpserted, elementsDropped, fetchFailures, fetchDuration, visitsRecorded, importRows)
}

// RecordIngest adds the counts of one successful fetch-and-merge run.
func RecordIngest(inserted, updated, dropped int, took time.Duration) {
	businessesUpserted.WithLabelValues("inserted").Add(float64(inserted))
	businessesUpserted.WithLabelValues("updated").Add(float64(updated))
	elementsDropped.Add(float64(dropped))
	fetchDuration.Observe(took.Seconds())
}

// RecordFetchFailure counts a failed run by error kind.
func RecordFetchFailure(kind string) {
	fetchFailures.WithLabelValues(kind).Inc()
}

// RecordVisit counts a ledger write.
func RecordVisit(status string) {
	visitsRecorded.WithLabelValues(status).Inc()
}

// RecordImport adds the row counters of one import.
func RecordImport(updated, skipped int) {
	importRows.WithLabelValues("updated").Add(float64(updated))
	importRows.WithLabelValues("skipped").Add(float64(skipped))
}

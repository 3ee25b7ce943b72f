// Package metrics exposes Prometheus collectors for searches, index
// flushes, reindexing and the outstanding queue.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feedsearch"

// Search and index Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches",
		},
		[]string{"mode", "status"}, // mode: all/any, status: ok/invalid/error
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, including the lazy flush",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	SearchHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Number of hits returned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	FlushedEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_entries_total",
			Help:      "Outstanding entries applied to the index",
		},
		[]string{"op"}, // upsert / delete
	)

	FlushErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_errors_total",
			Help:      "Flushes that failed and left entries queued",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Flush duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)

	OutstandingEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_entries",
			Help:      "Entries waiting in the outstanding queue",
		},
	)

	IndexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_documents",
			Help:      "Live documents in the article index",
		},
	)

	ReindexTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_total",
			Help:      "Full reindex runs",
		},
		[]string{"trigger", "status"}, // trigger: request/recovery/startup
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchesTotal,
			SearchDuration,
			SearchHits,
			FlushedEntriesTotal,
			FlushErrorsTotal,
			FlushDuration,
			OutstandingEntries,
			IndexedDocuments,
			ReindexTotal,
		)
	})
}

// Status labels.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Mode returns the search mode label.
func Mode(requireAll bool) string {
	if requireAll {
		return "all"
	}
	return "any"
}

// ObserveSearch records one search.
func ObserveSearch(requireAll bool, status string, hits int, elapsed time.Duration) {
	mode := Mode(requireAll)
	SearchesTotal.WithLabelValues(mode, status).Inc()
	SearchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if status == StatusOK {
		SearchHits.Observe(float64(hits))
	}
}

// ObserveFlush records one flush pass.
func ObserveFlush(upserts, deletes int, elapsed time.Duration, err error) {
	if err != nil {
		FlushErrorsTotal.Inc()
	}
	FlushedEntriesTotal.WithLabelValues("upsert").Add(float64(upserts))
	FlushedEntriesTotal.WithLabelValues("delete").Add(float64(deletes))
	FlushDuration.Observe(elapsed.Seconds())
}

// ObserveReindex records one full reindex.
func ObserveReindex(trigger string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	ReindexTotal.WithLabelValues(trigger, status).Inc()
}

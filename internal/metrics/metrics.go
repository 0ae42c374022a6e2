// Package metrics exposes enrichment pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcomes reported by the orchestrator.
const (
	RecordEnriched = "enriched"
	RecordEmpty    = "empty"
	RecordSkipped  = "skipped"
	RecordFailed   = "failed"
)

// Recorder owns a registry so tests can build independent instances.
type Recorder struct {
	registry      *prometheus.Registry
	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	recordsTotal  *prometheus.CounterVec
	dedupeDropped prometheus.Counter
	batchSize     prometheus.Histogram
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enricher_fetch_total",
			Help: "Website fetches by outcome (ok or failure reason)",
		}, []string{"outcome"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "enricher_fetch_duration_seconds",
			Help:    "Time spent on a single website fetch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		recordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enricher_records_total",
			Help: "Business records processed by enrichment result",
		}, []string{"result"}),
		dedupeDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "enricher_dedupe_dropped_total",
			Help: "Business records dropped as duplicates",
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "enricher_batch_size",
			Help:    "Number of businesses per enrichment batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500},
		}),
	}
}

// ObserveFetch records one fetch outcome.
func (r *Recorder) ObserveFetch(outcome string, elapsed time.Duration) {
	r.fetchTotal.WithLabelValues(outcome).Inc()
	r.fetchDuration.Observe(elapsed.Seconds())
}

// ObserveRecord records how one business left the enrichment pipeline.
func (r *Recorder) ObserveRecord(result string) {
	r.recordsTotal.WithLabelValues(result).Inc()
}

// ObserveBatch records the size of an enrichment batch.
func (r *Recorder) ObserveBatch(size int) {
	r.batchSize.Observe(float64(size))
}

// ObserveDuplicates records how many records a dedupe pass dropped.
func (r *Recorder) ObserveDuplicates(dropped int) {
	if dropped > 0 {
		r.dedupeDropped.Add(float64(dropped))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

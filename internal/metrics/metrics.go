// Package metrics exports pipeline counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "infodigest"

// Recorder collects pipeline metrics on its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	rateLimited       prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	extractLatency    *prometheus.HistogramVec
	summarizeLatency  *prometheus.HistogramVec
	inFlight          prometheus.Gauge
	limiterUsers      prometheus.Gauge
	storeWriteFailure prometheus.Counter
}

// LatencyBuckets covers sub-second cache hits up to slow LLM calls.
var LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// New builds a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Handled messages by reply kind and outcome.",
		}, []string{"kind", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rate_limited_total",
			Help:      "Messages rejected by the per-user rate limit.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "lookups_total",
			Help:      "Digest cache lookups by result.",
		}, []string{"result"}),
		extractLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "duration_seconds",
			Help:      "Content extraction latency.",
			Buckets:   LatencyBuckets,
		}, []string{"content_type", "outcome"}),
		summarizeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "duration_seconds",
			Help:      "AI summarization latency.",
			Buckets:   LatencyBuckets,
		}, []string{"content_type", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "in_flight",
			Help:      "URLs currently being processed.",
		}),
		limiterUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "tracked_users",
			Help:      "Users with an open rate-limit window after the last sweep.",
		}),
		storeWriteFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_failures_total",
			Help:      "Digest records that could not be persisted.",
		}),
	}

	registry.MustRegister(
		r.requests,
		r.rateLimited,
		r.cacheLookups,
		r.extractLatency,
		r.summarizeLatency,
		r.inFlight,
		r.limiterUsers,
		r.storeWriteFailure,
	)
	return r
}

// Registry exposes the underlying registry for tests and custom handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Request counts one handled message.
func (r *Recorder) Request(kind, outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(kind, outcome).Inc()
}

// RateLimited counts a rejected message.
func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

// CacheLookup records a store lookup as hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Extraction observes one extraction attempt.
func (r *Recorder) Extraction(contentType, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.extractLatency.WithLabelValues(contentType, outcome).Observe(elapsed.Seconds())
}

// Summarization observes one summarization call including retries.
func (r *Recorder) Summarization(contentType, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.summarizeLatency.WithLabelValues(contentType, outcome).Observe(elapsed.Seconds())
}

// InFlight adjusts the number of URLs being processed.
func (r *Recorder) InFlight(delta float64) {
	if r == nil {
		return
	}
	r.inFlight.Add(delta)
}

// LimiterUsers publishes the number of tracked rate-limit windows.
func (r *Recorder) LimiterUsers(n int) {
	if r == nil {
		return
	}
	r.limiterUsers.Set(float64(n))
}

// StoreWriteFailed counts a persistence failure.
func (r *Recorder) StoreWriteFailed() {
	if r == nil {
		return
	}
	r.storeWriteFailure.Inc()
}

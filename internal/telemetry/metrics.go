// Package telemetry provides observability primitives for the gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exposed over the metrics
// endpoint. ReqCounter, InputTokens, and OutputTokens are the three
// monotonic counters committed at logging; the rest are ambient
// observability carried over from the wider stack.
type Metrics struct {
	ReqCounter   *prometheus.CounterVec
	InputTokens  *prometheus.CounterVec
	OutputTokens *prometheus.CounterVec

	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	RateLimitRejects *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReqCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "req_counter",
			Help:      "Total number of gateway requests, by model and status.",
		}, []string{"model", "status"}),

		InputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "input_tokens",
			Help:      "Cumulative input tokens attributed, by user and model.",
		}, []string{"user", "model"}),

		OutputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "output_tokens",
			Help:      "Cumulative output tokens attributed, by user and model.",
		}, []string{"user", "model"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "burgonet",
			Name:                            "request_duration_seconds",
			Help:                            "Gateway pipeline duration in seconds, admission through logging.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"model"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "burgonet",
			Name:      "active_requests",
			Help:      "Number of requests currently in the pipeline.",
		}),

		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections, by model.",
		}, []string{"model"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "cache_hits_total",
			Help:      "Total in-memory resolution cache hits, by cache.",
		}, []string{"cache"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burgonet",
			Name:      "cache_misses_total",
			Help:      "Total in-memory resolution cache misses, by cache.",
		}, []string{"cache"}),
	}

	reg.MustRegister(
		m.ReqCounter,
		m.InputTokens,
		m.OutputTokens,
		m.RequestDuration,
		m.ActiveRequests,
		m.RateLimitRejects,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

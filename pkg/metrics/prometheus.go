package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	lastPrice        *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbridge_provider_requests_total",
				Help: "Upstream provider requests by operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		fallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbridge_provider_fallbacks_total",
				Help: "Times the composite fell through to a lower-priority provider",
			},
			[]string{"op"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbridge_errors_total",
				Help: "Errors observed by kind",
			},
			[]string{"kind"},
		),
		upstreamLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finbridge_upstream_duration_seconds",
				Help:    "Upstream call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finbridge_last_price",
				Help: "Last streamed price for a ticker",
			},
			[]string{"ticker"},
		),
	}
}

// RecordProviderRequest counts one upstream request.
func (r *Recorder) RecordProviderRequest(provider, op, outcome string) {
	r.providerRequests.WithLabelValues(provider, op, outcome).Inc()
}

// RecordFallback counts a fallback to a lower-priority provider.
func (r *Recorder) RecordFallback(op string) {
	r.fallbacks.WithLabelValues(op).Inc()
}

// RecordError counts an error occurrence by kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordUpstreamLatency observes one upstream call duration.
func (r *Recorder) RecordUpstreamLatency(provider, op string, seconds float64) {
	r.upstreamLatency.WithLabelValues(provider, op).Observe(seconds)
}

// RecordLastPrice records the latest streamed price for a ticker.
func (r *Recorder) RecordLastPrice(ticker string, price float64) {
	r.lastPrice.WithLabelValues(ticker).Set(price)
}

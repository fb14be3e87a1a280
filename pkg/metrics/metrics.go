package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const (
	namespace = "span_grouper"
	tenantKey = "tenant"
)

// Metrics are shared by every task. Per tenant series are created on first use.
type Metrics struct {
	registry *prometheus.Registry

	DroppedSpans        *prometheus.CounterVec
	TruncatedTraces     *prometheus.CounterVec
	ProcessingLatency   *prometheus.HistogramVec
	EmittedTraces       *prometheus.CounterVec
	UnsampledTraces     *prometheus.CounterVec
	LateSpans           *prometheus.CounterVec
	SpansPerTrace       *prometheus.HistogramVec
	TraceEmitDelay      *prometheus.HistogramVec
	RestoredPunctuators prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	tenant := []string{tenantKey}
	return &Metrics{
		registry: registry,
		DroppedSpans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_spans_total",
				Help:      "Spans rejected because their trace reached the span limit of the tenant",
			},
			tenant,
		),
		TruncatedTraces: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "truncated_traces_total",
				Help:      "Traces that reached the span limit of the tenant",
			},
			tenant,
		),
		ProcessingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processing_latency_ms",
				Help:      "Time spent handling one admitted span in milliseconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
			},
			tenant,
		),
		EmittedTraces: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emitted_traces_total",
				Help:      "Traces forwarded downstream",
			},
			tenant,
		),
		UnsampledTraces: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unsampled_traces_total",
				Help:      "Completed traces discarded by sampling",
			},
			tenant,
		),
		LateSpans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "late_spans_total",
				Help:      "Spans that arrived after their trace was already emitted",
			},
			tenant,
		),
		SpansPerTrace: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "spans_per_trace",
				Help:      "Number of spans in a completed trace",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			tenant,
		),
		TraceEmitDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trace_emit_delay_ms",
				Help:      "Time between the first span of a trace and its emission in milliseconds",
				Buckets:   prometheus.ExponentialBuckets(100, 2, 14),
			},
			tenant,
		),
		RestoredPunctuators: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restored_punctuators_total",
				Help:      "Emission timers re-armed from persisted trace state on startup",
			},
		),
	}
}

func (m *Metrics) SpanDropped(tenant string) {
	m.DroppedSpans.WithLabelValues(tenant).Inc()
}

func (m *Metrics) TraceTruncated(tenant string) {
	m.TruncatedTraces.WithLabelValues(tenant).Inc()
}

func (m *Metrics) ObserveProcessingLatency(tenant string, latency time.Duration) {
	m.ProcessingLatency.WithLabelValues(tenant).Observe(milliseconds(latency))
}

func (m *Metrics) TraceEmitted(tenant string, spanCount int, delay time.Duration) {
	m.EmittedTraces.WithLabelValues(tenant).Inc()
	m.SpansPerTrace.WithLabelValues(tenant).Observe(float64(spanCount))
	m.TraceEmitDelay.WithLabelValues(tenant).Observe(milliseconds(delay))
}

func (m *Metrics) TraceUnsampled(tenant string) {
	m.UnsampledTraces.WithLabelValues(tenant).Inc()
}

func (m *Metrics) LateSpan(tenant string) {
	m.LateSpans.WithLabelValues(tenant).Inc()
}

func (m *Metrics) PunctuatorsRestored(count int) {
	m.RestoredPunctuators.Add(float64(count))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

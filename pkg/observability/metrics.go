package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RenderMetrics holds all Prometheus metrics for render passes and the preview server.
type RenderMetrics struct {
	// Render pass metrics
	PassesTotal   *prometheus.CounterVec
	PassSeconds   *prometheus.HistogramVec
	LinesTotal    *prometheus.CounterVec
	SpeakersTotal *prometheus.HistogramVec

	// Output metrics
	OutputSeconds *prometheus.HistogramVec

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Preview server metrics
	HTTPRequestsTotal *prometheus.CounterVec
	LiveReloadClients prometheus.Gauge
}

// DefaultRenderMetrics creates metrics registered with the default registry.
func DefaultRenderMetrics() *RenderMetrics {
	return NewRenderMetrics(prometheus.DefaultRegisterer)
}

// NewRenderMetrics creates a new set of render metrics.
func NewRenderMetrics(reg prometheus.Registerer) *RenderMetrics {
	factory := promauto.With(reg)

	return &RenderMetrics{
		PassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speech_bubbles_render_passes_total",
				Help: "Total render passes by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		PassSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "speech_bubbles_render_pass_seconds",
				Help:    "Render pass latency",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"trigger"},
		),
		LinesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speech_bubbles_lines_total",
				Help: "Classified transcript lines by kind",
			},
			[]string{"kind"},
		),
		SpeakersTotal: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "speech_bubbles_speakers_per_pass",
				Help:    "Distinct speakers seen in a render pass",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"trigger"},
		),
		OutputSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "speech_bubbles_output_seconds",
				Help:    "Time spent writing rendered output",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"format"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speech_bubbles_cache_lookups_total",
				Help: "Render cache lookups by backend and result",
			},
			[]string{"backend", "result"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speech_bubbles_http_requests_total",
				Help: "Preview server requests by route and status code",
			},
			[]string{"route", "code"},
		),
		LiveReloadClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "speech_bubbles_live_reload_clients",
				Help: "Connected live reload websocket clients",
			},
		),
	}
}

// RecordPass records a completed render pass.
func (m *RenderMetrics) RecordPass(trigger, status string, seconds float64) {
	m.PassesTotal.WithLabelValues(trigger, status).Inc()
	m.PassSeconds.WithLabelValues(trigger).Observe(seconds)
}

// RecordLine records one classified line.
func (m *RenderMetrics) RecordLine(kind string) {
	m.LinesTotal.WithLabelValues(kind).Inc()
}

// RecordSpeakers records the number of distinct speakers in a pass.
func (m *RenderMetrics) RecordSpeakers(trigger string, count int) {
	m.SpeakersTotal.WithLabelValues(trigger).Observe(float64(count))
}

// RecordOutput records output rendering latency.
func (m *RenderMetrics) RecordOutput(format string, seconds float64) {
	m.OutputSeconds.WithLabelValues(format).Observe(seconds)
}

// RecordCacheLookup records a cache hit, miss or error.
func (m *RenderMetrics) RecordCacheLookup(backend, result string) {
	m.CacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

// RecordHTTPRequest records a served preview request.
func (m *RenderMetrics) RecordHTTPRequest(route, code string) {
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
}

// MetricsRecorder records metrics for one trigger (cli, view, serve).
type MetricsRecorder struct {
	metrics *RenderMetrics
	trigger string
}

// NewMetricsRecorder creates a new metrics recorder for a trigger.
// A nil metrics value yields a recorder that records nothing.
func NewMetricsRecorder(metrics *RenderMetrics, trigger string) *MetricsRecorder {
	return &MetricsRecorder{
		metrics: metrics,
		trigger: trigger,
	}
}

// RecordPassCompletion records pass outcome, latency and speaker count.
func (r *MetricsRecorder) RecordPassCompletion(status string, durationSeconds float64, speakers int) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.RecordPass(r.trigger, status, durationSeconds)
	if status == StatusSuccess {
		r.metrics.RecordSpeakers(r.trigger, speakers)
	}
}

// RecordLine records one classified line.
func (r *MetricsRecorder) RecordLine(kind string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.RecordLine(kind)
}

// Pass statuses.
const (
	StatusSuccess  = "success"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

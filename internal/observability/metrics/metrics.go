// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metronome_ingress"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram
	RPCsTotal      *prometheus.CounterVec

	// Classifier ingress metrics
	ResultsReceived prometheus.Counter
	ResultsDropped  *prometheus.CounterVec
	FramesRejected  prometheus.Counter
	QueueDepth      prometheus.Gauge
	SourceErrors    *prometheus.CounterVec

	// Tempo metrics
	SnapSamples       prometheus.Counter
	TempoOutcomes     *prometheus.CounterVec
	TempoCurrentBPM   prometheus.Gauge
	TempoPendingDepth prometheus.Gauge

	// Activity metrics
	PlayStarted    *prometheus.CounterVec
	PlayCompleted  *prometheus.CounterVec
	PlaySeconds    *prometheus.HistogramVec
	PlayFalseStops *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Live feed metrics
	LiveClients prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers all metrics on reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Stream metrics
		StreamsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of gRPC classification streams started",
		}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active gRPC classification streams",
		}),
		StreamsSuccess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_success_total",
			Help:      "Total number of successfully completed streams",
		}),
		StreamsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		}),
		RPCsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_unary_calls_total",
			Help:      "Total unary gRPC calls by method and status code",
		}, []string{"method", "code"}),

		// Classifier ingress metrics
		ResultsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_results_total",
			Help:      "Total classifier result batches accepted for analysis",
		}),
		ResultsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_results_dropped_total",
			Help:      "Classifier result batches dropped before analysis",
		}, []string{"reason"}),
		FramesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "gRPC frames rejected as malformed",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_queue_depth",
			Help:      "Result batches waiting for the analysis consumer",
		}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_source_errors_total",
			Help:      "Errors reported by classifier sources",
		}, []string{"source"}),

		// Tempo metrics
		SnapSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tempo_snap_samples_total",
			Help:      "Snap confidence samples fed to the tempo estimator",
		}),
		TempoOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tempo_evaluations_total",
			Help:      "Tempo evaluations that ended a bar, by outcome",
		}, []string{"outcome"}),
		TempoCurrentBPM: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tempo_current_bpm",
			Help:      "Most recent tempo estimate in beats per minute",
		}),
		TempoPendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tempo_pending_samples",
			Help:      "Snap samples buffered awaiting a full bar",
		}),

		// Activity metrics
		PlayStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_play_started_total",
			Help:      "Play intervals opened, by label",
		}, []string{"label"}),
		PlayCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_play_completed_total",
			Help:      "Play intervals closed after the stop grace, by label",
		}, []string{"label"}),
		PlaySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_play_seconds",
			Help:      "Length of completed play intervals in seconds",
			Buckets:   []float64{5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"label"}),
		PlayFalseStops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_false_stops_total",
			Help:      "Confidence dips that recovered within the stop grace, by label",
		}, []string{"label"}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected WebSocket live feed clients",
		}),
	}
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordUnaryCall records a completed unary RPC.
func (m *Metrics) RecordUnaryCall(method, code string) {
	m.RPCsTotal.WithLabelValues(method, code).Inc()
}

// RecordResultAccepted records a result batch entering the analysis queue.
func (m *Metrics) RecordResultAccepted(queueDepth int) {
	m.ResultsReceived.Inc()
	m.QueueDepth.Set(float64(queueDepth))
}

// RecordResultDropped records a result batch that never reached analysis.
func (m *Metrics) RecordResultDropped(reason string) {
	m.ResultsDropped.WithLabelValues(reason).Inc()
}

// RecordFrameRejected records a malformed ingress frame.
func (m *Metrics) RecordFrameRejected() {
	m.FramesRejected.Inc()
}

// RecordSourceError records a classifier source failure.
func (m *Metrics) RecordSourceError(source string) {
	m.SourceErrors.WithLabelValues(source).Inc()
}

// RecordSnapSample records one estimator input and its resulting outcome.
// Buffered samples only update the pending depth.
func (m *Metrics) RecordSnapSample(outcome string, pending int) {
	m.SnapSamples.Inc()
	m.TempoPendingDepth.Set(float64(pending))
	if outcome != "buffered" {
		m.TempoOutcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordTempo records a finalized estimate.
func (m *Metrics) RecordTempo(bpm int) {
	m.TempoCurrentBPM.Set(float64(bpm))
}

// RecordPlayStarted records a label entering the playing state.
func (m *Metrics) RecordPlayStarted(label string) {
	m.PlayStarted.WithLabelValues(label).Inc()
}

// RecordPlayCompleted records a closed play interval.
func (m *Metrics) RecordPlayCompleted(label string, seconds float64) {
	m.PlayCompleted.WithLabelValues(label).Inc()
	m.PlaySeconds.WithLabelValues(label).Observe(seconds)
}

// RecordFalseStops records dips that recovered within grace.
func (m *Metrics) RecordFalseStops(label string, n int) {
	if n > 0 {
		m.PlayFalseStops.WithLabelValues(label).Add(float64(n))
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// SetLiveClients records the live feed connection count.
func (m *Metrics) SetLiveClients(n int) {
	m.LiveClients.Set(float64(n))
}

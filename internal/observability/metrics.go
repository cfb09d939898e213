package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes recorded by RecordEvent
const (
	OutcomeEnqueued      = "enqueued"
	OutcomeNotTranslated = "not_translated"
	OutcomeMissingTarget = "missing_target"
	OutcomePanic         = "panic"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_relay_active_sessions",
		Help: "Number of running translation sessions (0 or 1)",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_relay_sessions_total",
		Help: "Total number of session start attempts",
	}, []string{"status"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translation_relay_session_duration_seconds",
		Help:    "Duration of translation sessions in seconds",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
	})

	// Recognition event metrics
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_relay_events_total",
		Help: "Recognition events received from the speech provider, by outcome",
	}, []string{"outcome"})

	translateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translation_relay_translate_latency_seconds",
		Help:    "Text translation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	translateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_relay_translate_requests_total",
		Help: "Total number of text translation requests",
	}, []string{"status"})

	// Relay queue metrics
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_relay_queue_depth",
		Help: "Items waiting in the relay queue",
	})

	queueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_relay_queue_dropped_total",
		Help: "Items evicted from a full relay queue",
	})

	// Stream metrics
	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_relay_stream_clients",
		Help: "Connected /stream clients",
	})

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_relay_frames_sent_total",
		Help: "Translation frames written to stream clients",
	})

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_relay_audio_bytes_total",
		Help: "Audio bytes relayed from /audio to the speech provider",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_relay_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "translation_relay_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single translation session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	endOnce   sync.Once
}

// NewSessionMetrics creates a metrics tracker for a session that just started
func NewSessionMetrics(sessionID string) *SessionMetrics {
	activeSessions.Inc()
	sessionsTotal.WithLabelValues("started").Inc()
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionEnd records the end of the session. Safe to call more than once.
func (m *SessionMetrics) RecordSessionEnd() {
	m.endOnce.Do(func() {
		activeSessions.Dec()
		sessionDuration.Observe(time.Since(m.startTime).Seconds())
	})
}

// RecordSessionStartFailure counts a session that could not be started
func RecordSessionStartFailure(reason string) {
	sessionsTotal.WithLabelValues(reason).Inc()
}

// RecordEvent counts a recognition event by outcome
func RecordEvent(outcome string) {
	eventsTotal.WithLabelValues(outcome).Inc()
}

// RecordTranslate records a text translation call
func RecordTranslate(latency time.Duration, success bool) {
	translateLatency.Observe(latency.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	translateRequests.WithLabelValues(status).Inc()
}

// SetQueueDepth publishes the current relay queue length
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordQueueDrop counts an item evicted from a full queue
func RecordQueueDrop() {
	queueDropped.Inc()
}

// StreamOpened and StreamClosed track connected stream clients
func StreamOpened() { streamClients.Inc() }

func StreamClosed() { streamClients.Dec() }

// RecordFrameSent counts a translation frame written to a client
func RecordFrameSent() {
	framesSent.Inc()
}

// RecordAudioBytes counts audio bytes relayed to the provider
func RecordAudioBytes(n int) {
	audioBytes.Add(float64(n))
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stt_bridge_active_sessions",
		Help: "Number of active transcription sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_bridge_sessions_total",
		Help: "Total number of transcription sessions processed",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_bridge_session_duration_seconds",
		Help:    "Duration of transcription sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Chunk metrics
	chunksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_bridge_chunks_dispatched_total",
		Help: "Total number of audio chunks dispatched to the backend",
	})

	chunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_bridge_chunk_bytes_total",
		Help: "Total PCM bytes dispatched in chunks",
	})

	// Transcription request metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_bridge_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"transport", "status"})

	transcriptionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stt_bridge_request_latency_seconds",
		Help:    "Transcription request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"transport"})

	// Transcript event metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_bridge_transcript_events_total",
		Help: "Total transcript events emitted",
	}, []string{"kind"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_bridge_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// SessionMetrics tracks metrics for a single audio session
type SessionMetrics struct {
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for a session and records
// its start
func NewSessionMetrics() *SessionMetrics {
	activeSessions.Inc()
	totalSessions.Inc()
	return &SessionMetrics{startTime: time.Now()}
}

// End records the end of the session
func (m *SessionMetrics) End() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordChunk records one dispatched chunk
func RecordChunk(bytes int) {
	chunksDispatched.Inc()
	chunkBytes.Add(float64(bytes))
}

// RecordRequest records the outcome and latency of a transcription request
func RecordRequest(transport string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(transport, status).Inc()
	transcriptionLatency.WithLabelValues(transport).Observe(latency.Seconds())
}

// RecordEvent records one emitted transcript event by kind
func RecordEvent(kind string) {
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

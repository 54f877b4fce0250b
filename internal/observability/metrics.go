package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	}, []string{"session_id"})

	FramesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "frames_skipped_total",
		Help:      "Total number of frames skipped by the detection scheduler",
	}, []string{"session_id"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	}, []string{"session_id"})

	FacesRecognized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "faces_recognized_total",
		Help:      "Total number of faces matched against the enrolled gallery",
	}, []string{"session_id"})

	AttendanceRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_recorded_total",
		Help:      "Total number of attendance events recorded, by status",
	}, []string{"status"})

	DuplicateArrivals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "duplicate_arrivals_total",
		Help:      "Arrival records suppressed because one already exists for the day",
	})

	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "alerts_triggered_total",
		Help:      "Alert rules triggered, by priority",
	}, []string{"priority"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rollcall",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "queue_depth",
		Help:      "Number of pending frame tasks in queue",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "active_sessions",
		Help:      "Number of currently active capture sessions",
	})

	TrackedFaces = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "tracked_faces",
		Help:      "Number of faces currently tracked per session",
	}, []string{"session_id"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rollcall",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth is the number of jobs waiting behind the running one
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transly_queue_depth",
			Help: "Number of transcription jobs waiting in the queue",
		},
	)

	// QueueBusy is 1 while a job is executing
	QueueBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transly_queue_busy",
			Help: "Whether a transcription job is currently executing (0/1)",
		},
	)

	// JobsTotal counts settled jobs by terminal status
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transly_jobs_total",
			Help: "Total number of transcription jobs by terminal status",
		},
		[]string{"status"},
	)

	// StageDuration observes pipeline stage latency in seconds
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transly_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"stage"},
	)

	// InferenceOutcomes counts genuine vs placeholder transcriptions
	InferenceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transly_inference_outcomes_total",
			Help: "Inference results by outcome (genuine/placeholder)",
		},
		[]string{"outcome"},
	)

	// ModelLoads counts recognizer initializations
	ModelLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transly_model_loads_total",
			Help: "Number of times the speech recognition model was loaded",
		},
	)

	// EventsDropped counts events not delivered to a slow listener
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transly_events_dropped_total",
			Help: "Events dropped because a listener buffer was full",
		},
	)
)

// ObserveStage records how long a stage took since start
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordJob counts a job that reached a terminal status
func RecordJob(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}

// SetBusy flips the busy gauge
func SetBusy(busy bool) {
	if busy {
		QueueBusy.Set(1)
	} else {
		QueueBusy.Set(0)
	}
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Processed       prometheus.Counter
	Fallbacks       prometheus.Counter
	EnqueuedJobs    prometheus.Counter
	ProcessedJobs   prometheus.Counter
	FailedJobs      prometheus.Counter
	ProcessDuration prometheus.Histogram
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Processed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "voxpost",
				Name:      "transcriptions_processed_total",
				Help:      "Total transcriptions rewritten by the model service",
			}),
			Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "voxpost",
				Name:      "transcriptions_fallback_total",
				Help:      "Total transcriptions returned raw after a backend failure",
			}),
			EnqueuedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "voxpost",
				Name:      "queue_enqueued_total",
				Help:      "Total transcription jobs enqueued to redis stream",
			}),
			ProcessedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "voxpost",
				Name:      "queue_processed_total",
				Help:      "Total transcription jobs successfully processed",
			}),
			FailedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "voxpost",
				Name:      "queue_failed_total",
				Help:      "Total transcription jobs failed during processing",
			}),
			ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "voxpost",
				Name:      "process_duration_seconds",
				Help:      "Wall time of model-backed transcription processing",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			}),
		}
		prometheus.MustRegister(
			global.Processed,
			global.Fallbacks,
			global.EnqueuedJobs,
			global.ProcessedJobs,
			global.FailedJobs,
			global.ProcessDuration,
		)
	})
	return global
}

// Package metrics exposes the worker's Prometheus instrumentation. All
// metrics are anonymous; no user identifiers are recorded.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TranscriptionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "transcriptions_total",
		Help:      "Total number of completed transcriptions.",
	})

	TranscriptionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "transcription_errors_total",
		Help:      "Total number of transcription errors by type.",
	}, []string{"error_type"})

	FilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "audio_files_total",
		Help:      "Total number of audio files processed.",
	})

	TranscriptionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worker",
		Name:      "transcription_seconds",
		Help:      "Time spent transcribing a single job.",
		Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
	})

	FileSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worker",
		Name:      "file_size_bytes",
		Help:      "Size of processed files in bytes.",
		Buckets:   []float64{1e6, 5e6, 1e7, 5e7, 1e8, 5e8, 1e9},
	})

	AudioDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worker",
		Name:      "audio_duration_seconds",
		Help:      "Duration of transcribed audio.",
		Buckets:   []float64{30, 60, 300, 600, 1800, 3600, 7200},
	})

	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worker",
		Name:      "queue_size",
		Help:      "Number of eligible files in the processing queue.",
	})

	ProcessingFileSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worker",
		Name:      "processing_file_size_bytes",
		Help:      "Size of the file currently being processed.",
	})
)

// Register adds all worker metrics to the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TranscriptionsTotal,
		TranscriptionErrorsTotal,
		FilesTotal,
		TranscriptionDuration,
		FileSizeBytes,
		AudioDurationSeconds,
		QueueSize,
		ProcessingFileSize,
	)
}

// Serve registers the metrics and exposes them on /metrics. It blocks, so
// callers run it in a goroutine.
func Serve(port int) error {
	Register(prometheus.DefaultRegisterer)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// TrackFile records the counters for a file entering the pipeline.
func TrackFile(path string) {
	FilesTotal.Inc()
	if info, err := os.Stat(path); err == nil {
		FileSizeBytes.Observe(float64(info.Size()))
		ProcessingFileSize.Set(float64(info.Size()))
	}
}

// Package metrics exposes Prometheus collectors for the scan pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the pipeline metrics. A nil *Recorder is valid and records
// nothing, so callers never need to guard their calls.
type Recorder struct {
	scansTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	contours      prometheus.Histogram
	truncations   prometheus.Counter
	candidates    prometheus.Histogram
	batchFiles    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRecorder creates a Recorder registered on its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docscan_scans_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docscan_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),

		contours: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docscan_contours_scanned",
				Help:    "Number of contours traced per detection",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		truncations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docscan_contour_truncations_total",
				Help: "Detections that stopped at the contour limit",
			},
		),

		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docscan_quad_candidates",
				Help:    "Number of four-vertex candidates per detection",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),

		batchFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docscan_batch_files_total",
				Help: "Files processed by batch and watch runners by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		registry: registry,
	}

	registry.MustRegister(
		r.scansTotal,
		r.stageDuration,
		r.contours,
		r.truncations,
		r.candidates,
		r.batchFiles,
	)

	return r
}

// RecordScan counts one pipeline run. outcome is "ok" or a failure kind.
func (r *Recorder) RecordScan(outcome string) {
	if r == nil {
		return
	}
	r.scansTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records the latency of one pipeline stage.
func (r *Recorder) RecordStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordContours records how many contours one detection traced and how
// many of them reduced to quadrilaterals.
func (r *Recorder) RecordContours(traced, quads int, truncated bool) {
	if r == nil {
		return
	}
	r.contours.Observe(float64(traced))
	r.candidates.Observe(float64(quads))
	if truncated {
		r.truncations.Inc()
	}
}

// RecordFile counts one file handled by a batch or watch runner.
func (r *Recorder) RecordFile(source, outcome string) {
	if r == nil {
		return
	}
	r.batchFiles.WithLabelValues(source, outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

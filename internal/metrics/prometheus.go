// Package metrics records scan activity with Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements scoring.Metrics using Prometheus. Each Recorder owns
// its registry so several can coexist in one process.
type Recorder struct {
	registry         *prometheus.Registry
	scansTotal       *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
	candidatesTotal  *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	detectorFailures *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscan_scans_total",
				Help: "Total number of symbols scanned",
			},
			[]string{"timeframe"},
		),
		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternscan_scan_duration_seconds",
				Help:    "Duration of a single symbol scan in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"timeframe"},
		),
		candidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscan_candidates_total",
				Help: "Total number of scored pattern candidates",
			},
			[]string{"pattern", "grade"},
		),
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscan_rejections_total",
				Help: "Total number of symbols rejected before classification",
			},
			[]string{"reason"},
		),
		detectorFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscan_detector_failures_total",
				Help: "Total number of classifier failures",
			},
			[]string{"detector"},
		),
	}
}

// RecordScan records one completed symbol scan.
func (r *Recorder) RecordScan(timeframe string, seconds float64) {
	r.scansTotal.WithLabelValues(timeframe).Inc()
	r.scanDuration.WithLabelValues(timeframe).Observe(seconds)
}

// RecordCandidate records a scored candidate.
func (r *Recorder) RecordCandidate(pattern, grade string) {
	r.candidatesTotal.WithLabelValues(pattern, grade).Inc()
}

// RecordRejection records a symbol rejected by the input gates.
func (r *Recorder) RecordRejection(reason string) {
	r.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordDetectorFailure records a classifier failure.
func (r *Recorder) RecordDetectorFailure(detector string) {
	r.detectorFailures.WithLabelValues(detector).Inc()
}

// Gatherer exposes the recorder's registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Package metrics exposes Prometheus instrumentation for the pipeline:
// per-node status transitions, per-chunk generation outcomes, and
// generation/QC durations. It is optional — every recording method is a
// no-op on a nil *Recorder, so callers that don't want a metrics server
// can simply not construct one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns the Prometheus collectors for one registry. Construct one
// with New and pass it into the orchestrator/pipeline layers that accept
// a metrics interface.
type Recorder struct {
	nodeTransitions *prometheus.CounterVec
	chunkOutcomes   *prometheus.CounterVec
	chunkDuration   *prometheus.HistogramVec
	chapterDuration *prometheus.HistogramVec
	qcFailRate      *prometheus.GaugeVec
}

// New registers a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer for a process-wide one.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		nodeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audioformation",
			Subsystem: "pipeline",
			Name:      "node_transitions_total",
			Help:      "Count of pipeline node status transitions, by node and resulting status.",
		}, []string{"node", "status"}),

		chunkOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audioformation",
			Subsystem: "generate",
			Name:      "chunk_outcomes_total",
			Help:      "Count of generated chunk outcomes, by engine and outcome (pass, fail, retry).",
		}, []string{"engine", "outcome"}),

		chunkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "audioformation",
			Subsystem: "generate",
			Name:      "chunk_duration_seconds",
			Help:      "Time spent generating and QC-scanning one chunk, by engine.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),

		chapterDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "audioformation",
			Subsystem: "generate",
			Name:      "chapter_duration_seconds",
			Help:      "Time spent generating one chapter end to end, by engine.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"engine"}),

		qcFailRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "audioformation",
			Subsystem: "generate",
			Name:      "qc_fail_rate_percent",
			Help:      "Most recent chunk QC failure rate for a chapter, as a percentage.",
		}, []string{"chapter"}),
	}
}

// RecordNodeTransition records that node moved to status.
func (r *Recorder) RecordNodeTransition(node, status string) {
	if r == nil {
		return
	}
	r.nodeTransitions.WithLabelValues(node, status).Inc()
}

// RecordChunkOutcome records one chunk's terminal outcome ("pass", "fail")
// for engineName, or an intermediate "retry" for each retried attempt.
func (r *Recorder) RecordChunkOutcome(engineName, outcome string) {
	if r == nil {
		return
	}
	r.chunkOutcomes.WithLabelValues(engineName, outcome).Inc()
}

// ObserveChunkDuration records seconds spent generating and QC-scanning
// one chunk on engineName.
func (r *Recorder) ObserveChunkDuration(engineName string, seconds float64) {
	if r == nil {
		return
	}
	r.chunkDuration.WithLabelValues(engineName).Observe(seconds)
}

// ObserveChapterDuration records seconds spent generating one chapter
// end to end on engineName.
func (r *Recorder) ObserveChapterDuration(engineName string, seconds float64) {
	if r == nil {
		return
	}
	r.chapterDuration.WithLabelValues(engineName).Observe(seconds)
}

// SetQCFailRate records chapterID's most recent QC failure rate.
func (r *Recorder) SetQCFailRate(chapterID string, percent float64) {
	if r == nil {
		return
	}
	r.qcFailRate.WithLabelValues(chapterID).Set(percent)
}

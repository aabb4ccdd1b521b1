package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordNodeTransition_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordNodeTransition("generate", "complete")
	r.RecordNodeTransition("generate", "complete")
	r.RecordNodeTransition("mix", "running")

	const want = `
# HELP audioformation_pipeline_node_transitions_total Count of pipeline node status transitions, by node and resulting status.
# TYPE audioformation_pipeline_node_transitions_total counter
audioformation_pipeline_node_transitions_total{node="generate",status="complete"} 2
audioformation_pipeline_node_transitions_total{node="mix",status="running"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "audioformation_pipeline_node_transitions_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestRecordChunkOutcome_LabelsByEngineAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordChunkOutcome("edge", "pass")
	r.RecordChunkOutcome("edge", "fail")
	r.RecordChunkOutcome("xtts", "pass")

	const want = `
# HELP audioformation_generate_chunk_outcomes_total Count of generated chunk outcomes, by engine and outcome (pass, fail, retry).
# TYPE audioformation_generate_chunk_outcomes_total counter
audioformation_generate_chunk_outcomes_total{engine="edge",outcome="fail"} 1
audioformation_generate_chunk_outcomes_total{engine="edge",outcome="pass"} 1
audioformation_generate_chunk_outcomes_total{engine="xtts",outcome="pass"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "audioformation_generate_chunk_outcomes_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestSetQCFailRate_RecordsGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.SetQCFailRate("ch01", 12.5)
	r.SetQCFailRate("ch01", 8.0)

	const want = `
# HELP audioformation_generate_qc_fail_rate_percent Most recent chunk QC failure rate for a chapter, as a percentage.
# TYPE audioformation_generate_qc_fail_rate_percent gauge
audioformation_generate_qc_fail_rate_percent{chapter="ch01"} 8
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "audioformation_generate_qc_fail_rate_percent"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestObserveChunkDuration_RecordsHistogramSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveChunkDuration("edge", 1.5)

	if got := testutil.CollectAndCount(reg, "audioformation_generate_chunk_duration_seconds"); got != 1 {
		t.Errorf("metric families collected = %d, want 1", got)
	}
}

func TestNilRecorder_MethodsAreNoOps(t *testing.T) {
	var r *Recorder
	r.RecordNodeTransition("generate", "complete")
	r.RecordChunkOutcome("edge", "pass")
	r.ObserveChunkDuration("edge", 1.0)
	r.ObserveChapterDuration("edge", 10.0)
	r.SetQCFailRate("ch01", 5.0)
}

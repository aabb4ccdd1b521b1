package pipeline

import (
	"testing"

	"github.com/socialawy/audioformation/pkg/types"
)

func TestUpdateNodeStatus_RejectsUnknownNode(t *testing.T) {
	state := types.NewPipelineState("P1")
	if err := UpdateNodeStatus(state, "not_a_node", types.StatusComplete); err == nil {
		t.Fatal("expected error for unknown node, got nil")
	}
}

func TestUpdateNodeStatus_RejectsUnknownStatus(t *testing.T) {
	state := types.NewPipelineState("P1")
	if err := UpdateNodeStatus(state, "validate", types.NodeStatus("bogus")); err == nil {
		t.Fatal("expected error for unknown status, got nil")
	}
}

func TestUpdateNodeStatus_Transitions(t *testing.T) {
	state := types.NewPipelineState("P1")
	if err := UpdateNodeStatus(state, "validate", types.StatusComplete); err != nil {
		t.Fatalf("UpdateNodeStatus() error = %v", err)
	}
	status, err := GetNodeStatus(state, "validate")
	if err != nil {
		t.Fatalf("GetNodeStatus() error = %v", err)
	}
	if status != types.StatusComplete {
		t.Errorf("status = %q, want complete", status)
	}
	if state.Nodes["validate"].Timestamp.IsZero() {
		t.Error("expected Timestamp to be stamped on transition")
	}
}

// S4: can_proceed_to('generate') returns (false, 'validate') when the
// validate gate has not passed.
func TestCanProceedTo_BlockedByHardGate(t *testing.T) {
	state := types.NewPipelineState("P1")

	ok, reason, err := CanProceedTo(state, "generate")
	if err != nil {
		t.Fatalf("CanProceedTo() error = %v", err)
	}
	if ok {
		t.Fatal("expected CanProceedTo(generate) = false before validate passes")
	}
	if reason != "validate" {
		t.Errorf("reason = %q, want %q", reason, "validate")
	}

	if err := UpdateNodeStatus(state, "validate", types.StatusComplete); err != nil {
		t.Fatalf("UpdateNodeStatus() error = %v", err)
	}

	ok, reason, err = CanProceedTo(state, "generate")
	if err != nil {
		t.Fatalf("CanProceedTo() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected CanProceedTo(generate) = true after validate passes, reason = %q", reason)
	}
}

func TestCanProceedTo_QCFinalBlocksExport(t *testing.T) {
	state := types.NewPipelineState("P1")
	for _, n := range []string{"validate"} {
		if err := UpdateNodeStatus(state, n, types.StatusComplete); err != nil {
			t.Fatalf("UpdateNodeStatus(%q) error = %v", n, err)
		}
	}

	ok, reason, err := CanProceedTo(state, "export")
	if err != nil {
		t.Fatalf("CanProceedTo() error = %v", err)
	}
	if ok {
		t.Fatal("expected CanProceedTo(export) = false before qc_final passes")
	}
	if reason != "qc_final" {
		t.Errorf("reason = %q, want qc_final", reason)
	}
}

func TestRequireGate_ReturnsGateError(t *testing.T) {
	state := types.NewPipelineState("P1")
	err := RequireGate(state, "generate")
	if err == nil {
		t.Fatal("expected GateError, got nil")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestUpdateChapterStatus_ForcesGeneratePartial(t *testing.T) {
	state := types.NewPipelineState("P1")
	if err := UpdateChapterStatus(state, "ch1", types.ChapterState{Status: types.StatusComplete, Chunks: 3}); err != nil {
		t.Fatalf("UpdateChapterStatus() error = %v", err)
	}
	if state.Nodes["generate"].Status != types.StatusPartial {
		t.Errorf("generate status = %q, want partial", state.Nodes["generate"].Status)
	}
	if state.Nodes["generate"].Chapters["ch1"].Chunks != 3 {
		t.Error("chapter chunk count not recorded")
	}
}

func TestGetResumePoint(t *testing.T) {
	state := types.NewPipelineState("P1")
	if got := GetResumePoint(state); got != "bootstrap" {
		t.Errorf("GetResumePoint() = %q, want bootstrap", got)
	}

	for _, n := range []string{"bootstrap", "ingest", "validate"} {
		if err := UpdateNodeStatus(state, n, types.StatusComplete); err != nil {
			t.Fatalf("UpdateNodeStatus(%q) error = %v", n, err)
		}
	}
	if got := GetResumePoint(state); got != "generate" {
		t.Errorf("GetResumePoint() = %q, want generate", got)
	}

	if err := UpdateNodeStatus(state, "generate", types.StatusSkipped); err != nil {
		t.Fatalf("UpdateNodeStatus(generate) error = %v", err)
	}
	if got := GetResumePoint(state); got != "qc_scan" {
		t.Errorf("GetResumePoint() with skipped generate = %q, want qc_scan (skipped nodes are stepped over)", got)
	}
}

func TestGetIncompleteChapters(t *testing.T) {
	state := types.NewPipelineState("P1")
	_ = UpdateChapterStatus(state, "ch1", types.ChapterState{Status: types.StatusComplete})
	_ = UpdateChapterStatus(state, "ch2", types.ChapterState{Status: types.StatusFailed})

	incomplete := GetIncompleteChapters(state)
	if len(incomplete) != 1 || incomplete[0] != "ch2" {
		t.Errorf("GetIncompleteChapters() = %v, want [ch2]", incomplete)
	}
}

func TestNodesInRange(t *testing.T) {
	nodes, err := NodesInRange("generate", "mix")
	if err != nil {
		t.Fatalf("NodesInRange() error = %v", err)
	}
	want := []string{"generate", "qc_scan", "process", "compose", "mix"}
	if len(nodes) != len(want) {
		t.Fatalf("NodesInRange() = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("NodesInRange()[%d] = %q, want %q", i, nodes[i], want[i])
		}
	}
}

func TestNodesInRange_InvalidOrder(t *testing.T) {
	if _, err := NodesInRange("export", "validate"); err == nil {
		t.Fatal("expected error when to precedes from, got nil")
	}
}

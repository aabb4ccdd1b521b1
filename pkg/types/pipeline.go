package types

import "time"

// NodeStatus is the lifecycle state of a pipeline node or chapter.
type NodeStatus string

const (
	StatusPending  NodeStatus = "pending"
	StatusRunning  NodeStatus = "running"
	StatusComplete NodeStatus = "complete"
	StatusPartial  NodeStatus = "partial"
	StatusFailed   NodeStatus = "failed"
	StatusSkipped  NodeStatus = "skipped"
)

// PipelineNodes lists every node in fixed execution order.
var PipelineNodes = []string{
	"bootstrap",
	"ingest",
	"validate",
	"generate",
	"qc_scan",
	"process",
	"compose",
	"mix",
	"qc_final",
	"export",
}

// HardGates block every downstream node unless their most recent status is
// complete.
var HardGates = map[string]bool{
	"validate": true,
	"qc_final": true,
}

// AutoGates are advisory: they never block, but feed downstream policy
// (qc_scan feeds the generate node's fail-rate accounting).
var AutoGates = map[string]bool{
	"qc_scan": true,
}

// NodeState is the persisted status of a single pipeline node.
type NodeState struct {
	Status    NodeStatus             `json:"status"`
	Timestamp time.Time              `json:"timestamp,omitzero"`
	Chapters  map[string]ChapterState `json:"chapters,omitempty"`
	Extra     map[string]any          `json:"-"`
}

// ChapterState is the chunk-granular resumability record for one chapter
// within the generate node.
type ChapterState struct {
	Status       NodeStatus `json:"status"`
	Chunks       int        `json:"chunks"`
	FailedChunks int        `json:"failed_chunks"`
	EngineUsed   string     `json:"engine_used,omitempty"`
	Extra        map[string]any `json:"-"`
}

// PipelineState is the per-project document tracking every node.
type PipelineState struct {
	ProjectID string               `json:"project_id"`
	Nodes     map[string]NodeState `json:"nodes"`
}

// NewPipelineState returns a freshly initialized state document with every
// node pending.
func NewPipelineState(projectID string) *PipelineState {
	nodes := make(map[string]NodeState, len(PipelineNodes))
	for _, n := range PipelineNodes {
		nodes[n] = NodeState{Status: StatusPending}
	}
	return &PipelineState{ProjectID: projectID, Nodes: nodes}
}

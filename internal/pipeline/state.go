// Package pipeline implements the node/gate state machine that tracks a
// project's progress through the production pipeline: node status
// transitions, hard-gate enforcement, chapter-level resumability, and the
// resume-point calculation used by `run --from`.
package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/socialawy/audioformation/internal/pipelineerr"
	"github.com/socialawy/audioformation/pkg/types"
)

var validStatuses = map[types.NodeStatus]bool{
	types.StatusPending:  true,
	types.StatusRunning:  true,
	types.StatusComplete: true,
	types.StatusPartial:  true,
	types.StatusFailed:   true,
	types.StatusSkipped:  true,
}

func nodeIndex(node string) int {
	for i, n := range types.PipelineNodes {
		if n == node {
			return i
		}
	}
	return -1
}

func validateNode(node string) error {
	if nodeIndex(node) < 0 {
		return &pipelineerr.ConfigError{Field: "node", Msg: fmt.Sprintf("unknown pipeline node %q", node)}
	}
	return nil
}

// GetNodeStatus returns the current status of a node, defaulting to
// pending if the node has never been touched.
func GetNodeStatus(state *types.PipelineState, node string) (types.NodeStatus, error) {
	if err := validateNode(node); err != nil {
		return "", err
	}
	if n, ok := state.Nodes[node]; ok {
		return n.Status, nil
	}
	return types.StatusPending, nil
}

// UpdateNodeStatus transitions a node to a new status, stamping the
// timestamp and logging the old→new transition.
func UpdateNodeStatus(state *types.PipelineState, node string, status types.NodeStatus) error {
	if err := validateNode(node); err != nil {
		return err
	}
	if !validStatuses[status] {
		return &pipelineerr.ConfigError{Field: "status", Msg: fmt.Sprintf("unknown node status %q", status)}
	}

	prev := state.Nodes[node]
	updated := prev
	updated.Status = status
	updated.Timestamp = time.Now().UTC()
	state.Nodes[node] = updated

	log.Printf("pipeline: node %q %s -> %s", node, prev.Status, status)
	return nil
}

// UpdateChapterStatus records chunk-granular progress for one chapter
// within the generate node. Per the original pipeline's semantics, any
// chapter-level write forces the parent generate node to partial — it
// only becomes complete when every chapter individually reports
// complete, which callers assert explicitly.
func UpdateChapterStatus(state *types.PipelineState, chapterID string, chapterState types.ChapterState) error {
	node := state.Nodes["generate"]
	if node.Chapters == nil {
		node.Chapters = map[string]types.ChapterState{}
	}
	node.Chapters[chapterID] = chapterState
	if node.Status != types.StatusComplete {
		node.Status = types.StatusPartial
	}
	node.Timestamp = time.Now().UTC()
	state.Nodes["generate"] = node

	log.Printf("pipeline: chapter %q generate status -> %s (%d/%d chunks failed)",
		chapterID, chapterState.Status, chapterState.FailedChunks, chapterState.Chunks)
	return nil
}

// IsGatePassed reports whether node is a hard gate and its most recent
// status is complete. Non-gate nodes always report passed (true).
func IsGatePassed(state *types.PipelineState, node string) (bool, error) {
	if err := validateNode(node); err != nil {
		return false, err
	}
	if !types.HardGates[node] {
		return true, nil
	}
	status, err := GetNodeStatus(state, node)
	if err != nil {
		return false, err
	}
	return status == types.StatusComplete, nil
}

// CanProceedTo reports whether every hard gate preceding target has
// passed. On failure it also returns the name of the first unsatisfied
// gate (bare node name, matching the spec's walkthrough contract); use
// GateError for a human-readable rendering of the same fact.
func CanProceedTo(state *types.PipelineState, target string) (bool, string, error) {
	idx := nodeIndex(target)
	if idx < 0 {
		return false, "", &pipelineerr.ConfigError{Field: "node", Msg: fmt.Sprintf("unknown pipeline node %q", target)}
	}

	for i := 0; i < idx; i++ {
		node := types.PipelineNodes[i]
		if !types.HardGates[node] {
			continue
		}
		passed, err := IsGatePassed(state, node)
		if err != nil {
			return false, "", err
		}
		if !passed {
			return false, node, nil
		}
	}
	return true, "", nil
}

// RequireGate returns a *pipelineerr.GateError if target cannot yet be
// reached, nil otherwise. Convenience wrapper for callers that want the
// typed-error flow (errors.As) rather than the boolean/reason pair.
func RequireGate(state *types.PipelineState, target string) error {
	ok, reason, err := CanProceedTo(state, target)
	if err != nil {
		return err
	}
	if !ok {
		return &pipelineerr.GateError{Gate: reason}
	}
	return nil
}

// GetResumePoint returns the first node (in pipeline order) whose status
// is neither complete nor skipped — the node a `run --from` with no
// explicit target should resume at. A skipped node is stepped over
// rather than treated as the resume point.
func GetResumePoint(state *types.PipelineState) string {
	for _, node := range types.PipelineNodes {
		status, _ := GetNodeStatus(state, node)
		if status != types.StatusComplete && status != types.StatusSkipped {
			return node
		}
	}
	return types.PipelineNodes[len(types.PipelineNodes)-1]
}

// GetIncompleteChapters returns the chapter ids under the generate node
// whose status is not complete, in map-iteration order sorted by id is
// left to the caller since map order is unspecified.
func GetIncompleteChapters(state *types.PipelineState) []string {
	node := state.Nodes["generate"]
	var incomplete []string
	for id, ch := range node.Chapters {
		if ch.Status != types.StatusComplete {
			incomplete = append(incomplete, id)
		}
	}
	return incomplete
}

// NodesInRange returns the contiguous slice of pipeline nodes from from
// through (inclusive) the end of the pipeline, or from from through to
// when to is non-empty. Used by `run --from <node>` and
// `run --from <node> --to <node>`.
func NodesInRange(from, to string) ([]string, error) {
	start := nodeIndex(from)
	if start < 0 {
		return nil, &pipelineerr.ConfigError{Field: "from", Msg: fmt.Sprintf("unknown pipeline node %q", from)}
	}
	end := len(types.PipelineNodes) - 1
	if to != "" {
		end = nodeIndex(to)
		if end < 0 {
			return nil, &pipelineerr.ConfigError{Field: "to", Msg: fmt.Sprintf("unknown pipeline node %q", to)}
		}
	}
	if end < start {
		return nil, &pipelineerr.ConfigError{Field: "to", Msg: "to precedes from in pipeline order"}
	}
	return append([]string{}, types.PipelineNodes[start:end+1]...), nil
}

// MarkNode is a convenience wrapper used by single-node CLI subcommands
// once their work is done: it sets node to final via UpdateNodeStatus and
// returns that call's error. It does not record a running status.
func MarkNode(state *types.PipelineState, node string, final types.NodeStatus) error {
	return UpdateNodeStatus(state, node, final)
}

package types

import (
	"encoding/json"
	"time"
)

// MarshalJSON flattens the well-known fields and Extra into a single
// object, mirroring the original implementation's `node_data.update(extra)`
// merge semantics.
func (n NodeState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+3)
	for k, v := range n.Extra {
		out[k] = v
	}
	out["status"] = n.Status
	if !n.Timestamp.IsZero() {
		out["timestamp"] = n.Timestamp
	}
	if n.Chapters != nil {
		out["chapters"] = n.Chapters
	}
	return json.Marshal(out)
}

// UnmarshalJSON pulls the well-known fields out of the flat object and
// stashes everything else in Extra.
func (n *NodeState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["status"]; ok {
		if err := json.Unmarshal(v, &n.Status); err != nil {
			return err
		}
		delete(raw, "status")
	}
	if v, ok := raw["timestamp"]; ok {
		var ts time.Time
		if err := json.Unmarshal(v, &ts); err == nil {
			n.Timestamp = ts
		}
		delete(raw, "timestamp")
	}
	if v, ok := raw["chapters"]; ok {
		var chapters map[string]ChapterState
		if err := json.Unmarshal(v, &chapters); err == nil {
			n.Chapters = chapters
		}
		delete(raw, "chapters")
	}
	if len(raw) > 0 {
		n.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err == nil {
				n.Extra[k] = val
			}
		}
	}
	return nil
}

// MarshalJSON flattens ChapterState's well-known fields and Extra.
func (c ChapterState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["status"] = c.Status
	out["chunks"] = c.Chunks
	out["failed_chunks"] = c.FailedChunks
	if c.EngineUsed != "" {
		out["engine_used"] = c.EngineUsed
	}
	return json.Marshal(out)
}

// UnmarshalJSON pulls ChapterState's well-known fields out of the flat
// object and stashes everything else in Extra.
func (c *ChapterState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["status"]; ok {
		if err := json.Unmarshal(v, &c.Status); err != nil {
			return err
		}
		delete(raw, "status")
	}
	if v, ok := raw["chunks"]; ok {
		json.Unmarshal(v, &c.Chunks)
		delete(raw, "chunks")
	}
	if v, ok := raw["failed_chunks"]; ok {
		json.Unmarshal(v, &c.FailedChunks)
		delete(raw, "failed_chunks")
	}
	if v, ok := raw["engine_used"]; ok {
		json.Unmarshal(v, &c.EngineUsed)
		delete(raw, "engine_used")
	}
	if len(raw) > 0 {
		c.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err == nil {
				c.Extra[k] = val
			}
		}
	}
	return nil
}

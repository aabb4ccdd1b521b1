// Package project implements the on-disk project store: directory layout,
// JSON config and pipeline-state persistence, id sanitization, and
// traversal-safe path resolution (§4.1).
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/socialawy/audioformation/internal/storage"
	"github.com/socialawy/audioformation/pkg/types"
)

// ProjectDirs is the fixed directory layout created under every project
// root.
var ProjectDirs = []string{
	"00_CONFIG",
	"01_TEXT/chapters",
	"02_VOICES/references",
	"03_GENERATED/raw",
	"03_GENERATED/processed",
	"03_GENERATED/compare",
	"04_SFX/procedural",
	"04_SFX/samples",
	"05_MUSIC/generated",
	"05_MUSIC/imported",
	"05_MUSIC/midi",
	"06_MIX/sessions",
	"06_MIX/renders",
	"07_EXPORT/audiobook",
	"07_EXPORT/chapters",
}

const gitignoreContent = `# audioformation — auto-generated .gitignore

# API keys — never commit
00_CONFIG/engines.json
00_CONFIG/*.key
00_CONFIG/*.pem

# Generated audio
03_GENERATED/**/*.wav
03_GENERATED/**/*.mp3
04_SFX/procedural/**/*.wav
05_MUSIC/generated/**/*.wav
06_MIX/renders/**/*.wav

# Exports
07_EXPORT/**/*.mp3
07_EXPORT/**/*.m4b
07_EXPORT/**/*.wav
07_EXPORT/**/*.flac

!**/.gitkeep
`

var projectIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrAlreadyExists is returned by Create when the target project already
// exists.
type ErrAlreadyExists struct{ ID string }

func (e *ErrAlreadyExists) Error() string { return fmt.Sprintf("project already exists: %s", e.ID) }

// ErrInvalidID is returned when an id sanitizes to empty or illegal
// content, or when resolution would escape the project root.
type ErrInvalidID struct {
	Raw    string
	Reason string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("invalid project id %q: %s", e.Raw, e.Reason)
}

// ErrNotFound is returned when a project does not exist.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("project not found: %s", e.ID) }

// Sanitize converts a raw project id into a filesystem-safe id: trim,
// replace spaces with underscores, uppercase, strip everything outside
// [A-Za-z0-9_-].
func Sanitize(raw string) (string, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_"))
	var b strings.Builder
	for _, r := range cleaned {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	result := b.String()
	if result == "" {
		return "", &ErrInvalidID{Raw: raw, Reason: "no valid characters remain after sanitization"}
	}
	return result, nil
}

// Store implements the project store contract: create, list, exists,
// load/save config and state, and id resolution.
type Store struct {
	adapter storage.Adapter
	root    string // absolute root directory that Adapter paths are relative to
}

// NewStore wraps a storage adapter as a project store. root is the
// absolute on-disk projects root used only for traversal-containment
// checks; all actual reads/writes go through adapter.
func NewStore(adapter storage.Adapter, root string) *Store {
	return &Store{adapter: adapter, root: root}
}

// Resolve validates id and returns the project-relative root path (e.g.
// "MY_BOOK"), verifying after full resolution that it remains strictly
// under the projects root.
func (s *Store) Resolve(id string) (string, error) {
	if !projectIDRe.MatchString(id) {
		return "", &ErrInvalidID{Raw: id, Reason: "must match [A-Za-z0-9_-]+"}
	}

	candidate := filepath.Join(s.root, id)
	resolvedRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", &ErrInvalidID{Raw: id, Reason: "cannot resolve projects root"}
	}
	resolvedCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", &ErrInvalidID{Raw: id, Reason: "cannot resolve candidate path"}
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedCandidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ErrInvalidID{Raw: id, Reason: "path traversal detected"}
	}

	return id, nil
}

// Create creates a new project: full directory structure (via .gitkeep
// markers through the adapter), a default project.json, an initial
// pipeline-status.json, and a .gitignore.
func (s *Store) Create(ctx context.Context, rawID string) (string, error) {
	id, err := Sanitize(rawID)
	if err != nil {
		return "", err
	}
	if _, err := s.Resolve(id); err != nil {
		return "", err
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &ErrAlreadyExists{ID: id}
	}

	for _, dir := range ProjectDirs {
		keepPath := filepath.ToSlash(filepath.Join(id, dir, ".gitkeep"))
		if err := s.adapter.Put(ctx, keepPath, bytes.NewReader(nil)); err != nil {
			return "", fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	cfg := DefaultConfig(id)
	cfg.Created = time.Now().UTC()
	if err := s.SaveConfig(ctx, id, &cfg); err != nil {
		return "", err
	}

	state := types.NewPipelineState(id)
	if err := s.SaveState(ctx, id, state); err != nil {
		return "", err
	}

	gitignorePath := filepath.ToSlash(filepath.Join(id, ".gitignore"))
	if err := s.adapter.Put(ctx, gitignorePath, strings.NewReader(gitignoreContent)); err != nil {
		return "", fmt.Errorf("write .gitignore: %w", err)
	}

	return id, nil
}

// Exists reports whether a project directory and project.json exist.
func (s *Store) Exists(ctx context.Context, rawID string) (bool, error) {
	id, err := s.Resolve(rawID)
	if err != nil {
		return false, nil
	}
	return s.adapter.Exists(ctx, filepath.ToSlash(filepath.Join(id, "project.json")))
}

// ProjectSummary is one entry returned by List.
type ProjectSummary struct {
	ID           string   `json:"id"`
	Created      string   `json:"created"`
	Languages    []string `json:"languages"`
	ChapterCount int      `json:"chapters"`
	CurrentNode  string   `json:"pipeline_node"`
}

// List enumerates every project under the projects root.
func (s *Store) List(ctx context.Context) ([]ProjectSummary, error) {
	paths, err := s.adapter.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	seen := map[string]bool{}
	var ids []string
	for _, p := range paths {
		parts := strings.SplitN(filepath.ToSlash(p), "/", 2)
		if len(parts) == 0 {
			continue
		}
		id := parts[0]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var summaries []ProjectSummary
	for _, id := range ids {
		exists, err := s.Exists(ctx, id)
		if err != nil || !exists {
			continue
		}
		cfg, err := s.LoadConfig(ctx, id)
		if err != nil {
			summaries = append(summaries, ProjectSummary{ID: id, Created: "unknown", CurrentNode: "error"})
			continue
		}
		state, err := s.LoadState(ctx, id)
		node := "new"
		if err == nil {
			node = currentNode(state)
		}
		summaries = append(summaries, ProjectSummary{
			ID:           cfg.ID,
			Created:      cfg.Created.Format(time.RFC3339),
			Languages:    cfg.Languages,
			ChapterCount: len(cfg.Chapters),
			CurrentNode:  node,
		})
	}
	return summaries, nil
}

func currentNode(state *types.PipelineState) string {
	for i := len(types.PipelineNodes) - 1; i >= 0; i-- {
		node := types.PipelineNodes[i]
		if n, ok := state.Nodes[node]; ok && (n.Status == types.StatusComplete || n.Status == types.StatusPartial) {
			return node
		}
	}
	return "new"
}

// LoadConfig reads project.json.
func (s *Store) LoadConfig(ctx context.Context, rawID string) (*types.ProjectConfig, error) {
	id, err := s.Resolve(rawID)
	if err != nil {
		return nil, err
	}
	data, err := s.readFile(ctx, id, "project.json")
	if err != nil {
		return nil, err
	}
	var cfg types.ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse project.json: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes project.json as a whole-file UTF-8 JSON replacement.
func (s *Store) SaveConfig(ctx context.Context, rawID string, cfg *types.ProjectConfig) error {
	id, err := s.Resolve(rawID)
	if err != nil {
		return err
	}
	return s.writeJSON(ctx, id, "project.json", cfg)
}

// LoadState reads pipeline-status.json, merging with node defaults so
// readers tolerate partial older shapes.
func (s *Store) LoadState(ctx context.Context, rawID string) (*types.PipelineState, error) {
	id, err := s.Resolve(rawID)
	if err != nil {
		return nil, err
	}
	data, err := s.readFile(ctx, id, "pipeline-status.json")
	if err != nil {
		return nil, err
	}
	var state types.PipelineState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse pipeline-status.json: %w", err)
	}
	if state.Nodes == nil {
		state.Nodes = map[string]types.NodeState{}
	}
	for _, node := range types.PipelineNodes {
		if _, ok := state.Nodes[node]; !ok {
			state.Nodes[node] = types.NodeState{Status: types.StatusPending}
		}
	}
	return &state, nil
}

// SaveState writes pipeline-status.json as a whole-file replacement. This
// is the only non-idempotent side effect the engine performs; the adapter
// write is expected to be atomic at the filesystem layer (see
// storage.LocalAdapter).
func (s *Store) SaveState(ctx context.Context, rawID string, state *types.PipelineState) error {
	id, err := s.Resolve(rawID)
	if err != nil {
		return err
	}
	return s.writeJSON(ctx, id, "pipeline-status.json", state)
}

// ProjectDir returns the project-relative root used for constructing
// sub-paths (e.g. chapter source files, generated audio).
func (s *Store) ProjectDir(rawID string) (string, error) {
	return s.Resolve(rawID)
}

// LocalPath returns the absolute on-disk directory for a project,
// joining the store's root with its resolved id. The generate/qc/mix/
// export stages shell out to ffmpeg, which needs real filesystem paths;
// they use LocalPath directly rather than going through the storage
// adapter, the same way the original only ever dealt with local
// pathlib.Path values. The S3 adapter remains available for
// project.json/pipeline-status.json, which is everything LoadConfig/
// SaveConfig/LoadState/SaveState touch.
func (s *Store) LocalPath(rawID string) (string, error) {
	id, err := s.Resolve(rawID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

func (s *Store) readFile(ctx context.Context, id, name string) ([]byte, error) {
	path := filepath.ToSlash(filepath.Join(id, name))
	exists, err := s.adapter.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", name, err)
	}
	if !exists {
		return nil, &ErrNotFound{ID: id}
	}
	r, err := s.adapter.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *Store) writeJSON(ctx context.Context, id, name string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	buf = append(buf, '\n')
	path := filepath.ToSlash(filepath.Join(id, name))
	return s.adapter.Put(ctx, path, bytes.NewReader(buf))
}

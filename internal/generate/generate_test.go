package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/engine"
	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/internal/project"
	"github.com/socialawy/audioformation/internal/storage"
	"github.com/socialawy/audioformation/pkg/types"
)

// stubEngine is a scriptable engine.TTSEngine (and optionally
// engine.VRAMManager) used to drive the orchestrator without a real
// synthesis backend or ffmpeg.
type stubEngine struct {
	mu           sync.Mutex
	name         string
	caps         engine.Capabilities
	gen          func(call int) (*engine.GenerationResult, error)
	calls        int
	releaseCalls int
	unloadCalls  int
}

func (e *stubEngine) Name() string                     { return e.name }
func (e *stubEngine) Capabilities() engine.Capabilities { return e.caps }

func (e *stubEngine) Generate(ctx context.Context, req engine.GenerateRequest) (*engine.GenerationResult, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	return e.gen(call)
}

func (e *stubEngine) ListVoices(ctx context.Context) ([]engine.Voice, error) { return nil, nil }
func (e *stubEngine) TestConnection(ctx context.Context) error              { return nil }
func (e *stubEngine) Close() error                                          { return nil }

func (e *stubEngine) ReleaseVRAM(ctx context.Context) error {
	e.mu.Lock()
	e.releaseCalls++
	e.mu.Unlock()
	return nil
}

func (e *stubEngine) UnloadModel(ctx context.Context) error {
	e.mu.Lock()
	e.unloadCalls++
	e.mu.Unlock()
	return nil
}

var _ engine.TTSEngine = (*stubEngine)(nil)
var _ engine.VRAMManager = (*stubEngine)(nil)

// silenceWAV encodes durationMs of silence at sampleRate into WAV bytes an
// engine.Generate response can carry as AudioPCM.
func silenceWAV(t *testing.T, sampleRate, durationMs int) []byte {
	t.Helper()
	n := sampleRate * durationMs / 1000
	clip := pcm.Clip{Samples: make([]int, n), SampleRate: sampleRate}
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := pcm.WriteFile(path, clip); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return raw
}

// clippedWAV encodes a full-scale (clipping) clip, used to force a chunk's
// QC scan to fail.
func clippedWAV(t *testing.T, sampleRate, durationMs int) []byte {
	t.Helper()
	n := sampleRate * durationMs / 1000
	samples := make([]int, n)
	for i := range samples {
		samples[i] = 32767
	}
	clip := pcm.Clip{Samples: samples, SampleRate: sampleRate}
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := pcm.WriteFile(path, clip); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return raw
}

func newTestStore(t *testing.T) *project.Store {
	t.Helper()
	root := t.TempDir()
	adapter, err := storage.NewLocalAdapter(root)
	if err != nil {
		t.Fatalf("NewLocalAdapter() error = %v", err)
	}
	return project.NewStore(adapter, root)
}

// setupProject creates a one-chapter, one-character project whose
// generation config is tuned small enough for fast, deterministic tests,
// and writes the chapter's source text file.
func setupProject(t *testing.T, mutate func(cfg *types.ProjectConfig)) (*project.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Create(ctx, "book")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cfg, err := store.LoadConfig(ctx, id)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	cfg.Characters = map[string]types.Character{
		"narrator": {ID: "narrator", Name: "Narrator", Engine: "primary", Voice: "v1", Dialect: "en-US"},
	}
	cfg.Chapters = []types.Chapter{
		{ID: "ch01", Title: "Chapter One", Language: "en", SourcePath: "01_TEXT/chapters/ch01.txt", DefaultCharacterID: "narrator"},
	}
	cfg.Generation.Engines = []types.EngineConfig{
		{Name: "primary", Kind: "stub", Concurrency: 2},
		{Name: "fallback", Kind: "stub", Concurrency: 2},
	}
	cfg.Generation.ChunkMaxChars = 500
	cfg.Generation.MaxRetriesPerChunk = 2
	cfg.Generation.EdgeTTSRateLimitMs = 0
	cfg.Generation.CrossfadeMs = 0
	cfg.Generation.LeadingSilenceMs = 0
	cfg.QC.SNRMinDB = -1000 // never fail on SNR in these tests
	if mutate != nil {
		mutate(cfg)
	}
	if err := store.SaveConfig(ctx, id, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	projectDir, err := store.LocalPath(id)
	if err != nil {
		t.Fatalf("LocalPath() error = %v", err)
	}
	sourcePath := filepath.Join(projectDir, "01_TEXT/chapters/ch01.txt")
	if err := os.MkdirAll(filepath.Dir(sourcePath), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(sourcePath, []byte("Hello there. A short chapter for testing."), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	return store, id
}

func newOrchestrator(store *project.Store, engines map[string]*stubEngine) *Orchestrator {
	reg := engine.NewRegistry()
	reg.RegisterFactory("stub", func(name string, options map[string]string) (engine.TTSEngine, error) {
		e, ok := engines[name]
		if !ok {
			return nil, fmt.Errorf("no stub registered for %s", name)
		}
		return e, nil
	})
	return NewOrchestrator(reg, audioproc.New(""), store)
}

func TestGenerate_FallbackChapterScope(t *testing.T) {
	store, id := setupProject(t, func(cfg *types.ProjectConfig) {
		cfg.Generation.FallbackScope = types.FallbackChapter
		cfg.Generation.FallbackChain = []string{"primary", "fallback"}
	})

	primary := &stubEngine{name: "primary", gen: func(call int) (*engine.GenerationResult, error) {
		return nil, fmt.Errorf("primary always down")
	}}
	fallback := &stubEngine{name: "fallback", gen: func(call int) (*engine.GenerationResult, error) {
		return &engine.GenerationResult{Success: true, AudioPCM: silenceWAV(t, 16000, 300), SampleRate: 16000}, nil
	}}

	orch := newOrchestrator(store, map[string]*stubEngine{"primary": primary, "fallback": fallback})

	report, err := orch.Generate(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(report.Details) != 1 {
		t.Fatalf("Details = %d entries, want 1", len(report.Details))
	}
	got := report.Details[0]
	if got.EngineUsed != "fallback" {
		t.Errorf("EngineUsed = %q, want fallback", got.EngineUsed)
	}
	if got.Status != types.StatusComplete && got.Status != types.StatusPartial {
		t.Errorf("Status = %v, want complete or partial after fallback", got.Status)
	}
}

func TestGenerate_FailRateExceedsThreshold(t *testing.T) {
	store, id := setupProject(t, func(cfg *types.ProjectConfig) {
		cfg.Generation.FailThresholdPercent = 1 // any failed chunk trips it
		cfg.Generation.FallbackChain = nil
	})

	primary := &stubEngine{name: "primary", gen: func(call int) (*engine.GenerationResult, error) {
		return nil, fmt.Errorf("synthesis unavailable")
	}}
	fallback := &stubEngine{name: "fallback", gen: func(call int) (*engine.GenerationResult, error) {
		return nil, fmt.Errorf("synthesis unavailable")
	}}

	orch := newOrchestrator(store, map[string]*stubEngine{"primary": primary, "fallback": fallback})

	report, err := orch.Generate(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if report.Details[0].Status != types.StatusFailed {
		t.Errorf("Status = %v, want failed when every chunk fails", report.Details[0].Status)
	}
	if report.FailRatePercent != 100 {
		t.Errorf("FailRatePercent = %v, want 100", report.FailRatePercent)
	}
}

func TestGenerateChunkWithRetry_RetriesOnQCFailThenSucceeds(t *testing.T) {
	store, id := setupProject(t, nil)

	primary := &stubEngine{name: "primary", gen: func(call int) (*engine.GenerationResult, error) {
		if call == 1 {
			return &engine.GenerationResult{Success: true, AudioPCM: clippedWAV(t, 16000, 300), SampleRate: 16000}, nil
		}
		return &engine.GenerationResult{Success: true, AudioPCM: silenceWAV(t, 16000, 300), SampleRate: 16000}, nil
	}}

	orch := newOrchestrator(store, map[string]*stubEngine{"primary": primary})

	report, err := orch.Generate(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if report.Details[0].FailedChunks != 0 {
		t.Errorf("FailedChunks = %d, want 0 after a successful retry", report.Details[0].FailedChunks)
	}
	if primary.calls < 2 {
		t.Errorf("calls = %d, want at least 2 (first attempt fails QC, retry succeeds)", primary.calls)
	}
}

// TestGenerate_QCFailExhaustsRetries_StillStitchesChunk matches the
// original's chunk_paths.append(chunk_path); success = True behavior: a
// chunk whose audio is written on every attempt but never passes QC is
// still stitched into the chapter output, just counted as failed, so the
// delivered chapter has no gap where the degraded chunk would have been.
func TestGenerate_QCFailExhaustsRetries_StillStitchesChunk(t *testing.T) {
	store, id := setupProject(t, func(cfg *types.ProjectConfig) {
		cfg.Generation.FallbackChain = nil
	})

	primary := &stubEngine{name: "primary", gen: func(call int) (*engine.GenerationResult, error) {
		return &engine.GenerationResult{Success: true, AudioPCM: clippedWAV(t, 16000, 300), SampleRate: 16000}, nil
	}}

	orch := newOrchestrator(store, map[string]*stubEngine{"primary": primary})

	report, err := orch.Generate(context.Background(), id, Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got := report.Details[0]
	if got.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1 (every attempt fails QC)", got.FailedChunks)
	}
	if got.Output == "" {
		t.Fatal("Output path is empty, want the QC-failed chunk's audio still stitched in")
	}
	info, err := os.Stat(got.Output)
	if err != nil {
		t.Fatalf("Stat(%q) error = %v", got.Output, err)
	}
	if info.Size() == 0 {
		t.Error("stitched chapter file is empty, want the QC-failed chunk's audio written")
	}
	if primary.calls < 3 {
		t.Errorf("calls = %d, want at least 3 (max_retries_per_chunk exhausted)", primary.calls)
	}
}

func TestApplyVRAMPolicy_Conservative_Unloads(t *testing.T) {
	store, _ := setupProject(t, nil)
	orch := newOrchestrator(store, nil)
	e := &stubEngine{name: "primary"}

	orch.applyVRAMPolicy(context.Background(), e, types.GenerationConfig{XTTSVRAMManagement: types.VRAMConservative})

	if e.unloadCalls != 1 {
		t.Errorf("unloadCalls = %d, want 1", e.unloadCalls)
	}
	if e.releaseCalls != 0 {
		t.Errorf("releaseCalls = %d, want 0", e.releaseCalls)
	}
}

func TestApplyVRAMPolicy_Default_ReleasesPerChapter(t *testing.T) {
	store, _ := setupProject(t, nil)
	orch := newOrchestrator(store, nil)
	e := &stubEngine{name: "primary"}

	orch.applyVRAMPolicy(context.Background(), e, types.GenerationConfig{XTTSVRAMManagement: types.VRAMEmptyCachePerChapter})

	if e.releaseCalls != 1 {
		t.Errorf("releaseCalls = %d, want 1", e.releaseCalls)
	}
	if e.unloadCalls != 0 {
		t.Errorf("unloadCalls = %d, want 0", e.unloadCalls)
	}
}

func TestApplyVRAMPolicy_IgnoresNonVRAMEngine(t *testing.T) {
	store, _ := setupProject(t, nil)
	orch := newOrchestrator(store, nil)

	type plainEngine struct{ engine.TTSEngine }
	// A nil-embedded TTSEngine is fine here: applyVRAMPolicy only ever
	// reaches the type assertion, never calls through the embedded value.
	orch.applyVRAMPolicy(context.Background(), plainEngine{}, types.GenerationConfig{XTTSVRAMManagement: types.VRAMConservative})
}

func TestRateLimiter_ZeroIntervalReturnsImmediately(t *testing.T) {
	l := &rateLimiter{minInterval: 0}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v, want nil when minInterval is 0", err)
	}
}

func TestFindEngineConfig_FallsBackToNameAsKind(t *testing.T) {
	engines := []types.EngineConfig{{Name: "a", Kind: "edgehttp"}}
	if got := findEngineConfig(engines, "a"); got.Kind != "edgehttp" {
		t.Errorf("Kind = %q, want edgehttp", got.Kind)
	}
	if got := findEngineConfig(engines, "unknown"); got.Kind != "unknown" {
		t.Errorf("Kind = %q, want name used as kind when unconfigured", got.Kind)
	}
}

func TestResolveConcurrency_PrefersEngineOverride(t *testing.T) {
	gen := types.GenerationConfig{EdgeTTSConcurrency: 4}
	if got := resolveConcurrency(gen, types.EngineConfig{Concurrency: 9}); got != 9 {
		t.Errorf("resolveConcurrency() = %d, want 9", got)
	}
	if got := resolveConcurrency(gen, types.EngineConfig{}); got != 4 {
		t.Errorf("resolveConcurrency() = %d, want 4 (generation default)", got)
	}
}

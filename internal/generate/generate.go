// Package generate implements the generation orchestrator (§4.5): the
// per-chapter chunk-generate-retry-QC loop, engine fallback, crossfade
// stitching, VRAM policy application, and chapter/node status rollup.
package generate

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/engine"
	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/internal/project"
	"github.com/socialawy/audioformation/internal/qcscan"
	"github.com/socialawy/audioformation/internal/segment"
	"github.com/socialawy/audioformation/internal/stitch"
	"github.com/socialawy/audioformation/pkg/types"
)

// chapterConcurrency bounds how many chapters generate concurrently. The
// original processes chapters one at a time; this is the Go-native
// generalization the spec calls for, not a value the original specifies.
const chapterConcurrency = 4

// Metrics is the subset of internal/metrics.Recorder that the
// orchestrator needs. Accepting an interface keeps this package from
// importing prometheus directly. A nil Metrics is valid: every recording
// call below guards against it, mirroring internal/metrics.Recorder's own
// nil-receiver no-ops.
type Metrics interface {
	RecordNodeTransition(node, status string)
	RecordChunkOutcome(engineName, outcome string)
	ObserveChunkDuration(engineName string, seconds float64)
	ObserveChapterDuration(engineName string, seconds float64)
	SetQCFailRate(chapterID string, percent float64)
}

// Orchestrator runs generation for one project.
type Orchestrator struct {
	Registry *engine.Registry
	Audio    *audioproc.Processor
	Store    *project.Store
	Metrics  Metrics

	mu       sync.Mutex
	limiters map[string]*rateLimiter
	sems     map[string]*semaphore.Weighted
}

func (o *Orchestrator) recordNodeTransition(node, status string) {
	if o.Metrics != nil {
		o.Metrics.RecordNodeTransition(node, status)
	}
}

func (o *Orchestrator) recordChunkOutcome(engineName, outcome string) {
	if o.Metrics != nil {
		o.Metrics.RecordChunkOutcome(engineName, outcome)
	}
}

func (o *Orchestrator) observeChunkDuration(engineName string, seconds float64) {
	if o.Metrics != nil {
		o.Metrics.ObserveChunkDuration(engineName, seconds)
	}
}

func (o *Orchestrator) observeChapterDuration(engineName string, seconds float64) {
	if o.Metrics != nil {
		o.Metrics.ObserveChapterDuration(engineName, seconds)
	}
}

func (o *Orchestrator) setQCFailRate(chapterID string, percent float64) {
	if o.Metrics != nil {
		o.Metrics.SetQCFailRate(chapterID, percent)
	}
}

// NewOrchestrator builds a generation orchestrator against a shared engine
// registry, audio processor, and project store.
func NewOrchestrator(reg *engine.Registry, audio *audioproc.Processor, store *project.Store) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Audio:    audio,
		Store:    store,
		limiters: make(map[string]*rateLimiter),
		sems:     make(map[string]*semaphore.Weighted),
	}
}

// Options narrows a generation run to specific chapters and/or forces a
// single engine for every chapter, overriding each character's configured
// engine.
type Options struct {
	EngineOverride string
	Chapters       []string // empty = all chapters
}

// ChapterResult is one chapter's outcome from a generation run.
type ChapterResult struct {
	ChapterID    string
	Status       types.NodeStatus
	TotalChunks  int
	FailedChunks int
	EngineUsed   string
	CrossfadeMs  int
	Output       string
	Error        string
	QCFailRate   float64
}

// Report is the overall outcome of one Generate call.
type Report struct {
	Chapters        int
	TotalChunks     int
	FailedChunks    int
	FailRatePercent float64
	Details         []ChapterResult
}

// Generate runs TTS generation for every requested chapter of project id,
// then rolls the per-chapter results up into the generate node's status.
func (o *Orchestrator) Generate(ctx context.Context, id string, opts Options) (*Report, error) {
	cfgPtr, err := o.Store.LoadConfig(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("generate: load config: %w", err)
	}
	cfg := *cfgPtr
	state, err := o.Store.LoadState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("generate: load state: %w", err)
	}

	chapters := cfg.Chapters
	if len(opts.Chapters) > 0 {
		want := map[string]bool{}
		for _, id := range opts.Chapters {
			want[id] = true
		}
		filtered := chapters[:0:0]
		for _, ch := range chapters {
			if want[ch.ID] {
				filtered = append(filtered, ch)
			}
		}
		chapters = filtered
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("generate: no chapters to generate")
	}

	if err := pipeline.UpdateNodeStatus(state, "generate", types.StatusRunning); err != nil {
		return nil, err
	}
	o.recordNodeTransition("generate", string(types.StatusRunning))
	if err := o.Store.SaveState(ctx, id, state); err != nil {
		return nil, fmt.Errorf("generate: save running state: %w", err)
	}

	gen := cfg.Generation
	fallbackScope := gen.FallbackScope
	if fallbackScope == "" {
		fallbackScope = types.FallbackChapter
	}
	fallbackChain := gen.FallbackChain

	var (
		resultsMu         sync.Mutex
		results           = make([]ChapterResult, len(chapters))
		projectEngineDead bool
		deadMu            sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chapterConcurrency)

	for i, chapter := range chapters {
		i, chapter := i, chapter
		g.Go(func() error {
			charID := chapter.EffectiveCharacter()
			character := cfg.Characters[charID]
			primaryEngine := opts.EngineOverride
			if primaryEngine == "" {
				primaryEngine = character.Engine
			}

			deadMu.Lock()
			projectDead := projectEngineDead
			deadMu.Unlock()

			var attempts []string
			if projectDead && fallbackScope == types.FallbackProject {
				for _, e := range fallbackChain {
					if e != primaryEngine {
						attempts = append(attempts, e)
					}
				}
				if len(attempts) == 0 {
					attempts = []string{primaryEngine}
				}
			} else {
				attempts = append(attempts, primaryEngine)
				for _, e := range fallbackChain {
					if e != primaryEngine {
						attempts = append(attempts, e)
					}
				}
			}

			var result ChapterResult
			for _, attemptEngine := range attempts {
				result = o.generateChapter(gctx, id, cfg, chapter, charID, character, attemptEngine)
				if result.Status == types.StatusComplete || result.Status == types.StatusPartial {
					if attemptEngine != primaryEngine {
						log.Printf("generate: %s fell back from %s to %s", chapter.ID, primaryEngine, attemptEngine)
						if fallbackScope == types.FallbackProject {
							deadMu.Lock()
							projectEngineDead = true
							deadMu.Unlock()
						}
					}
					break
				}
				log.Printf("generate: %s: %s failed (%s), trying next engine", chapter.ID, attemptEngine, result.Error)
				if attemptEngine == primaryEngine && fallbackScope == types.FallbackProject {
					deadMu.Lock()
					projectEngineDead = true
					deadMu.Unlock()
				}
			}

			chapterState := types.ChapterState{
				Status:       result.Status,
				Chunks:       result.TotalChunks,
				FailedChunks: result.FailedChunks,
				EngineUsed:   result.EngineUsed,
			}

			resultsMu.Lock()
			results[i] = result
			if err := pipeline.UpdateChapterStatus(state, chapter.ID, chapterState); err != nil {
				resultsMu.Unlock()
				return err
			}
			resultsMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	if err := o.Store.SaveState(ctx, id, state); err != nil {
		return nil, fmt.Errorf("generate: save chapter states: %w", err)
	}

	totalChunks, failedChunks := 0, 0
	allComplete := true
	for _, r := range results {
		totalChunks += r.TotalChunks
		failedChunks += r.FailedChunks
		if r.Status != types.StatusComplete {
			allComplete = false
		}
	}

	failRate := float64(failedChunks) / math.Max(float64(totalChunks), 1) * 100
	failThreshold := gen.FailThresholdPercent

	finalStatus := types.StatusPartial
	if allComplete {
		finalStatus = types.StatusComplete
	}
	if failRate > failThreshold {
		finalStatus = types.StatusFailed
	}

	if err := pipeline.UpdateNodeStatus(state, "generate", finalStatus); err != nil {
		return nil, err
	}
	o.recordNodeTransition("generate", string(finalStatus))
	if err := o.Store.SaveState(ctx, id, state); err != nil {
		return nil, fmt.Errorf("generate: save final state: %w", err)
	}

	return &Report{
		Chapters:        len(results),
		TotalChunks:     totalChunks,
		FailedChunks:    failedChunks,
		FailRatePercent: math.Round(failRate*100) / 100,
		Details:         results,
	}, nil
}

// generateChapter runs one full attempt at one chapter with one engine:
// segment the source text, chunk each segment, generate-retry-QC each
// chunk, stitch the survivors, and apply the engine's VRAM policy.
func (o *Orchestrator) generateChapter(ctx context.Context, projectID string, cfg types.ProjectConfig, chapter types.Chapter, charID string, character types.Character, engineName string) ChapterResult {
	result := ChapterResult{ChapterID: chapter.ID, EngineUsed: engineName}
	chapterStart := time.Now()
	defer func() { o.observeChapterDuration(engineName, time.Since(chapterStart).Seconds()) }()

	projectDir, err := o.Store.LocalPath(projectID)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("resolve project path: %v", err)
		return result
	}

	sourcePath := filepath.Join(projectDir, chapter.SourcePath)
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("source file not found: %v", err)
		return result
	}
	text := string(raw)

	engineCfg := findEngineConfig(cfg.Generation.Engines, engineName)
	eng, err := o.Registry.Instantiate(engineName, engineCfg.Kind, engineCfg.Options)
	if err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("engine not available: %v", err)
		return result
	}

	segments := segment.ParseChapterSegments(text, chapter.Mode, charID)

	crossfadeMs := cfg.Generation.CrossfadeMs
	if override, ok := cfg.Generation.CrossfadeOverrides[engineName]; ok {
		crossfadeMs = override
	}

	type chunkJob struct {
		id   string
		text string
	}
	var jobs []chunkJob
	chunkIndex := 0
	for _, seg := range segments {
		for _, chunkText := range segment.ChunkText(seg.Text, cfg.Generation.ChunkMaxChars, cfg.Generation.ChunkStrategy) {
			jobs = append(jobs, chunkJob{id: fmt.Sprintf("%s_%03d", chapter.ID, chunkIndex), text: chunkText})
			chunkIndex++
		}
	}

	rawDir := filepath.Join(projectDir, "03_GENERATED", "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		result.Status = types.StatusFailed
		result.Error = fmt.Sprintf("create raw output dir: %v", err)
		return result
	}

	caps := eng.Capabilities()
	clips := make([]pcm.Clip, len(jobs))
	written := make([]bool, len(jobs))
	failed := make([]bool, len(jobs))
	qcReport := types.QCReport{ProjectID: projectID, ChapterID: chapter.ID}
	var qcMu sync.Mutex

	thresholds := qcscan.Thresholds{
		SNRMinDB:                    cfg.QC.SNRMinDB,
		ClippingThresholdDBFS:       cfg.QC.ClippingThresholdDBFS,
		MaxDurationDeviationPercent: cfg.QC.MaxDurationDeviationPercent,
		LUFSDeviationMax:            cfg.QC.LUFSDeviationMax,
		TargetLUFS:                  cfg.Mix.TargetLUFS,
	}

	runJob := func(jctx context.Context, idx int) error {
		job := jobs[idx]
		chunkPath := filepath.Join(rawDir, job.id+".wav")
		clip, wrote, qc := o.generateChunkWithRetry(jctx, eng, job.id, job.text, chunkPath, character, cfg.Generation, engineCfg, engineName, thresholds)
		qcMu.Lock()
		qcReport.Chunks = append(qcReport.Chunks, qc)
		qcMu.Unlock()
		// A chunk that never produced audio (engine/decode/write failure)
		// has nothing to stitch in. A chunk whose audio was written but
		// never passed QC within the retry budget is still counted as
		// failed, but — matching the original's chunk_paths.append +
		// success=True behavior — its audio is kept so the delivered
		// chapter has no gap.
		if qc.Status() == types.CheckFail {
			failed[idx] = true
		}
		if wrote {
			written[idx] = true
			clips[idx] = clip
		}
		return nil
	}

	if caps.RequiresGPU {
		for idx := range jobs {
			if err := runJob(ctx, idx); err != nil {
				return result
			}
		}
	} else {
		sem := o.semaphoreFor(engineName, resolveConcurrency(cfg.Generation, engineCfg))
		wg, wctx := errgroup.WithContext(ctx)
		for idx := range jobs {
			idx := idx
			wg.Go(func() error {
				if err := sem.Acquire(wctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return runJob(wctx, idx)
			})
		}
		if err := wg.Wait(); err != nil {
			result.Status = types.StatusFailed
			result.Error = err.Error()
			return result
		}
	}

	failedChunks := 0
	var survivors []pcm.Clip
	for i := range jobs {
		if failed[i] {
			failedChunks++
		}
		if written[i] {
			survivors = append(survivors, clips[i])
		}
	}

	result.TotalChunks = len(jobs)
	result.FailedChunks = failedChunks
	result.QCFailRate = qcReport.FailRate()
	o.setQCFailRate(chapter.ID, result.QCFailRate)

	stitchOK := false
	if len(survivors) > 0 {
		stitched, err := stitch.Stitch(survivors, crossfadeMs, cfg.Generation.LeadingSilenceMs)
		if err != nil {
			log.Printf("generate: stitch failed for %s: %v", chapter.ID, err)
		} else {
			outPath := filepath.Join(projectDir, "03_GENERATED", "raw", chapter.ID+".wav")
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				log.Printf("generate: mkdir raw dir: %v", err)
			} else if err := pcm.WriteFile(outPath, stitched); err != nil {
				log.Printf("generate: write stitched chapter: %v", err)
			} else {
				stitchOK = true
				result.Output = outPath
			}
		}
	}

	o.applyVRAMPolicy(ctx, eng, cfg.Generation)

	result.CrossfadeMs = crossfadeMs
	if stitchOK && failedChunks == 0 {
		result.Status = types.StatusComplete
	} else if stitchOK {
		result.Status = types.StatusPartial
	} else {
		result.Status = types.StatusFailed
		result.Error = "stitch failed or no chunks survived"
	}
	return result
}

// generateChunkWithRetry runs one chunk through engine.Generate, retrying
// on either a generation failure or a failed QC scan, up to
// max_retries_per_chunk times, with no delay beyond the engine's own rate
// limiting. The returned bool reports whether audio was ever written for
// this chunk — true even if every attempt failed QC, since the caller
// still stitches in the last written attempt and relies on the returned
// QCResult's status to count the chunk as failed.
func (o *Orchestrator) generateChunkWithRetry(ctx context.Context, eng engine.TTSEngine, chunkID, text, chunkPath string, character types.Character, gen types.GenerationConfig, engineCfg types.EngineConfig, engineName string, thresholds qcscan.Thresholds) (pcm.Clip, bool, types.QCResult) {
	var clip pcm.Clip
	var lastQC types.QCResult
	wrote := false
	chunkStart := time.Now()
	attemptCount := 0

	attempts := gen.MaxRetriesPerChunk + 1
	err := retry.Do(
		func() error {
			if attemptCount > 0 {
				o.recordChunkOutcome(engineName, "retry")
			}
			attemptCount++
			if err := o.waitRateLimit(ctx, engineName, gen, engineCfg); err != nil {
				return retry.Unrecoverable(err)
			}

			req := engine.GenerateRequest{
				Text:     text,
				VoiceID:  character.Voice,
				Language: character.Dialect,
				SSML:     gen.EdgeTTSSSML,
			}
			if character.ReferenceAudio != "" {
				req.ReferenceAudio = character.ReferenceAudio
			}

			genResult, err := eng.Generate(ctx, req)
			if err != nil {
				return fmt.Errorf("engine error: %w", err)
			}
			if !genResult.Success {
				return fmt.Errorf("generation failed: %s", genResult.Message)
			}

			decoded, err := pcm.Read(bytes.NewReader(genResult.AudioPCM))
			if err != nil {
				return fmt.Errorf("decode generated audio: %w", err)
			}
			if genResult.SampleRate > 0 {
				decoded.SampleRate = genResult.SampleRate
			}

			if err := pcm.WriteFile(chunkPath, decoded); err != nil {
				return fmt.Errorf("write chunk wav: %w", err)
			}
			wrote = true

			qc := qcscan.ScanChunk(ctx, o.Audio, decoded, chunkPath, chunkID, 0, thresholds)
			lastQC = qc
			clip = decoded
			if qc.Status() == types.CheckFail {
				return fmt.Errorf("qc failed: %s", qcscan.FailureSummary(qc))
			}
			return nil
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(0),
		retry.LastErrorOnly(true),
	)

	o.observeChunkDuration(engineName, time.Since(chunkStart).Seconds())

	if err != nil {
		o.recordChunkOutcome(engineName, "fail")
		if lastQC.ChunkID == "" {
			lastQC = types.QCResult{
				ChunkID: chunkID,
				File:    chunkPath,
				Checks: map[string]types.CheckResult{
					"generation": {Status: types.CheckFail, Message: fmt.Sprintf("Generation failed: %v", err)},
				},
			}
		}
		return clip, wrote, lastQC
	}
	o.recordChunkOutcome(engineName, "pass")
	return clip, true, lastQC
}

func (o *Orchestrator) applyVRAMPolicy(ctx context.Context, eng engine.TTSEngine, gen types.GenerationConfig) {
	vramEng, ok := eng.(engine.VRAMManager)
	if !ok {
		return
	}
	switch gen.XTTSVRAMManagement {
	case types.VRAMConservative:
		if err := vramEng.UnloadModel(ctx); err != nil {
			log.Printf("generate: unload model: %v", err)
		}
	case types.VRAMReloadPeriodic:
		if err := vramEng.ReleaseVRAM(ctx); err != nil {
			log.Printf("generate: release vram: %v", err)
		}
	default:
		if err := vramEng.ReleaseVRAM(ctx); err != nil {
			log.Printf("generate: release vram: %v", err)
		}
	}
}

func findEngineConfig(engines []types.EngineConfig, name string) types.EngineConfig {
	for _, e := range engines {
		if e.Name == name {
			return e
		}
	}
	return types.EngineConfig{Name: name, Kind: name}
}

func resolveConcurrency(gen types.GenerationConfig, engineCfg types.EngineConfig) int {
	if engineCfg.Concurrency > 0 {
		return engineCfg.Concurrency
	}
	if gen.EdgeTTSConcurrency > 0 {
		return gen.EdgeTTSConcurrency
	}
	return 4
}

func resolveRateLimitMs(gen types.GenerationConfig, engineCfg types.EngineConfig) int {
	if engineCfg.RateLimitMs > 0 {
		return engineCfg.RateLimitMs
	}
	return gen.EdgeTTSRateLimitMs
}

func (o *Orchestrator) semaphoreFor(name string, concurrency int) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	sem, ok := o.sems[name]
	if !ok {
		sem = semaphore.NewWeighted(int64(concurrency))
		o.sems[name] = sem
	}
	return sem
}

func (o *Orchestrator) waitRateLimit(ctx context.Context, name string, gen types.GenerationConfig, engineCfg types.EngineConfig) error {
	o.mu.Lock()
	limiter, ok := o.limiters[name]
	if !ok {
		limiter = &rateLimiter{minInterval: time.Duration(resolveRateLimitMs(gen, engineCfg)) * time.Millisecond}
		o.limiters[name] = limiter
	}
	o.mu.Unlock()
	return limiter.Wait(ctx)
}

// rateLimiter enforces a minimum spacing between successive requests
// against one engine, matching edge_tts_rate_limit_ms.
type rateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.minInterval <= 0 {
		return nil
	}
	now := time.Now()
	if !l.last.IsZero() {
		if elapsed := now.Sub(l.last); elapsed < l.minInterval {
			select {
			case <-time.After(l.minInterval - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	l.last = time.Now()
	return nil
}

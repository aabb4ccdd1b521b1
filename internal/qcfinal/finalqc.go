// Package qcfinal implements the QC-Final gate (§4.11): per-file checks
// against the mixed renders in 06_MIX/renders before export is allowed —
// integrated LUFS, true peak, 0 dBFS clipping, longest interior silence
// gap, and a warning-only inter-window energy-jump heuristic for boundary
// artifacts.
package qcfinal

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/pkg/types"
)

// lufsTolerance is the fixed ±1 LUFS tolerance the original applies to
// final mixes, stricter than the per-chunk QC scanner's configurable
// deviation.
const lufsTolerance = 1.0

// truePeakSlack absorbs floating point noise right at the limit.
const truePeakSlack = 0.1

const silenceMinGapMs = 500
const boundaryWindowMs = 50
const boundaryJumpThresholdDB = 12.0

// LUFSMeasurer measures integrated loudness of a rendered file.
// internal/audioproc.Processor satisfies this.
type LUFSMeasurer interface {
	MeasureLUFS(ctx context.Context, path string) (float64, error)
}

// FileResult is one mixed file's QC-final outcome.
type FileResult struct {
	Filename                 string
	DurationSec              float64
	LUFS                     float64
	TruePeak                 float64
	Clipped                  bool
	Status                   types.CheckStatus
	Messages                 []string
	LongestSilenceSec        float64
	WorstBoundaryJumpDB      float64
	WorstBoundaryPositionSec float64
}

// Report is the full QC-final run across every rendered file.
type Report struct {
	ProjectID      string
	TargetLUFS     float64
	TruePeakLimit  float64
	TotalFiles     int
	PassedFiles    int
	FailedFiles    int
	Results        []FileResult
}

// Passed reports whether every file passed and at least one file was
// scanned — an empty render directory is never a pass.
func (r Report) Passed() bool {
	return r.FailedFiles == 0 && r.TotalFiles > 0
}

// ScanFinalMix runs QC-final over every *.wav file in renderDir.
func ScanFinalMix(ctx context.Context, measurer LUFSMeasurer, renderDir, projectID string, mix types.MixConfig, silenceThresholdDBFS float64) (Report, error) {
	matches, err := filepath.Glob(filepath.Join(renderDir, "*.wav"))
	if err != nil {
		return Report{}, fmt.Errorf("qcfinal: glob renders: %w", err)
	}
	sort.Strings(matches)

	report := Report{
		ProjectID:     projectID,
		TargetLUFS:    mix.TargetLUFS,
		TruePeakLimit: mix.TruePeakLimitDBTP,
		TotalFiles:    len(matches),
	}
	if len(matches) == 0 {
		return report, fmt.Errorf("qcfinal: no mixed files found in %s", renderDir)
	}

	maxSilenceSec := mix.GapBetweenChaptersSec * 2

	for _, path := range matches {
		result, err := scanOneFile(ctx, measurer, path, mix.TargetLUFS, mix.TruePeakLimitDBTP, silenceThresholdDBFS, maxSilenceSec)
		if err != nil {
			result = FileResult{
				Filename: filepath.Base(path),
				Status:   types.CheckFail,
				Messages: []string{fmt.Sprintf("Measurement error: %v", err)},
			}
		}
		report.Results = append(report.Results, result)
		if result.Status == types.CheckFail {
			report.FailedFiles++
		} else {
			report.PassedFiles++
		}
	}

	return report, nil
}

func scanOneFile(ctx context.Context, measurer LUFSMeasurer, path string, targetLUFS, truePeakLimit, silenceThresholdDBFS, maxSilenceSec float64) (FileResult, error) {
	clip, err := pcm.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("read wav: %w", err)
	}
	lufs, err := measurer.MeasureLUFS(ctx, path)
	if err != nil {
		return FileResult{}, fmt.Errorf("measure lufs: %w", err)
	}

	truePeak := audioproc.MeasureTruePeak(clip)
	clipping := audioproc.DetectClipping(clip, 0.0) // 0 dBFS: hard clipping only

	result := FileResult{
		Filename:     filepath.Base(path),
		DurationSec:  clip.DurationMs() / 1000,
		LUFS:         lufs,
		TruePeak:     truePeak,
		Clipped:      clipping.Clipped,
		Status:       types.CheckPass,
	}

	if math.Abs(lufs-targetLUFS) > lufsTolerance {
		result.Status = types.CheckFail
		result.Messages = append(result.Messages, fmt.Sprintf(
			"LUFS %.1f deviates from target %g by > %g.", lufs, targetLUFS, lufsTolerance))
	}
	if truePeak > truePeakLimit+truePeakSlack {
		result.Status = types.CheckFail
		result.Messages = append(result.Messages, fmt.Sprintf(
			"True Peak %.2f exceeds limit %g.", truePeak, truePeakLimit))
	}
	if clipping.Clipped {
		result.Status = types.CheckFail
		result.Messages = append(result.Messages, "Digital clipping detected (samples >= 0 dBFS).")
	}

	longestGap := longestSilenceGap(clip, silenceThresholdDBFS, silenceMinGapMs)
	result.LongestSilenceSec = longestGap
	if longestGap > maxSilenceSec {
		result.Status = types.CheckFail
		result.Messages = append(result.Messages, fmt.Sprintf(
			"Silence gap of %.1fs exceeds max %.1fs.", longestGap, maxSilenceSec))
	}

	jumpDB, jumpPosSec := worstBoundaryJump(clip)
	result.WorstBoundaryJumpDB = jumpDB
	result.WorstBoundaryPositionSec = jumpPosSec
	if jumpDB > boundaryJumpThresholdDB {
		// Warning only: flagged in messages, never fails the gate.
		result.Messages = append(result.Messages, fmt.Sprintf(
			"Possible boundary artifact at %.1fs (%.1f dB jump).", jumpPosSec, jumpDB))
	}

	return result, nil
}

// longestSilenceGap walks clip in 50ms chunks and returns the longest
// contiguous run (in seconds) whose dBFS stays below thresholdDBFS, only
// counting runs of at least minGapMs.
func longestSilenceGap(clip pcm.Clip, thresholdDBFS float64, minGapMs int) float64 {
	if clip.SampleRate == 0 {
		return 0
	}
	chunkSamples := clip.SampleRate * boundaryWindowMs / 1000
	if chunkSamples <= 0 {
		return 0
	}

	longestMs := 0
	currentGapMs := 0
	for i := 0; i < len(clip.Samples); i += chunkSamples {
		end := i + chunkSamples
		if end > len(clip.Samples) {
			end = len(clip.Samples)
		}
		if dbfsOrFloor(clip.Samples[i:end], -120) < thresholdDBFS {
			currentGapMs += boundaryWindowMs
			continue
		}
		if currentGapMs >= minGapMs && currentGapMs > longestMs {
			longestMs = currentGapMs
		}
		currentGapMs = 0
	}
	if currentGapMs >= minGapMs && currentGapMs > longestMs {
		longestMs = currentGapMs
	}

	return math.Round(float64(longestMs)/1000*100) / 100
}

// worstBoundaryJump scans adjacent 50ms windows for the largest absolute
// dBFS jump, a heuristic for bad crossfade/concatenation boundaries.
func worstBoundaryJump(clip pcm.Clip) (jumpDB, positionSec float64) {
	if clip.SampleRate == 0 {
		return 0, 0
	}
	windowSamples := clip.SampleRate * boundaryWindowMs / 1000
	if windowSamples <= 0 || len(clip.Samples) < 2*windowSamples {
		return 0, 0
	}

	haveLast := false
	var lastDBFS float64
	worst := 0.0
	worstPos := 0.0

	for i := 0; i+windowSamples <= len(clip.Samples); i += windowSamples {
		dbfs := dbfsOrFloor(clip.Samples[i:i+windowSamples], -80)
		if haveLast {
			jump := math.Abs(dbfs - lastDBFS)
			if jump > worst {
				worst = jump
				worstPos = float64(i) / float64(clip.SampleRate)
			}
		}
		lastDBFS = dbfs
		haveLast = true
	}

	return math.Round(worst*10) / 10, math.Round(worstPos*100) / 100
}

// dbfsOrFloor returns the RMS dBFS of samples, or floor when the chunk is
// exact silence (matching pydub's -inf-for-silence special case).
func dbfsOrFloor(samples []int, floor float64) float64 {
	if len(samples) == 0 {
		return floor
	}
	sumSq := 0.0
	for _, s := range samples {
		v := float64(s) / 32768
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return floor
	}
	return 20 * math.Log10(rms)
}

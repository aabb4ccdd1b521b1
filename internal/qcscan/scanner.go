// Package qcscan runs the per-chunk quality-control checks (§4.7):
// signal-to-noise ratio, clipping, duration deviation, and loudness
// deviation from target. SNR, clipping and duration are pure arithmetic
// over decoded PCM samples; loudness measurement is delegated to
// internal/audioproc since it requires ffmpeg's ITU-R BS.1770
// implementation rather than a hand-rolled approximation.
package qcscan

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/pkg/types"
)

// Thresholds mirrors the project's QCConfig, passed in so callers don't
// need to reach into appconfig from this package.
type Thresholds struct {
	SNRMinDB                    float64
	ClippingThresholdDBFS       float64
	MaxDurationDeviationPercent float64
	LUFSDeviationMax            float64
	TargetLUFS                  float64
}

// LUFSMeasurer measures integrated loudness of a rendered chunk file.
// internal/audioproc.Processor satisfies this.
type LUFSMeasurer interface {
	MeasureLUFS(ctx context.Context, path string) (float64, error)
}

// ScanChunk runs all applicable checks against a decoded chunk clip and
// its on-disk path (needed for the ffmpeg-backed LUFS check).
// expectedDurationMs <= 0 skips the duration check, matching the
// original's "no expected duration given" behavior.
func ScanChunk(ctx context.Context, measurer LUFSMeasurer, clip pcm.Clip, path, chunkID string, expectedDurationMs float64, th Thresholds) types.QCResult {
	result := types.QCResult{
		ChunkID: chunkID,
		File:    path,
		Checks:  map[string]types.CheckResult{},
	}

	result.Checks["snr"] = checkSNR(clip, th.SNRMinDB)
	result.Checks["clipping"] = checkClipping(clip, th.ClippingThresholdDBFS)
	if expectedDurationMs > 0 {
		result.Checks["duration"] = checkDuration(clip, expectedDurationMs, th.MaxDurationDeviationPercent)
	}
	result.Checks["lufs"] = checkLUFS(ctx, measurer, path, th.TargetLUFS, th.LUFSDeviationMax)

	return result
}

// checkSNR splits 25ms/10ms-hop frame RMS energies at their 30th
// percentile into noise and speech frames, then reports
// 20*log10(speech_rms/noise_rms).
func checkSNR(clip pcm.Clip, minDB float64) types.CheckResult {
	frameLen := int(float64(clip.SampleRate) * 0.025)
	hopLen := int(float64(clip.SampleRate) * 0.010)
	if frameLen <= 0 || hopLen <= 0 || len(clip.Samples) < frameLen {
		return types.CheckResult{Status: types.CheckWarn, Message: "audio too short for SNR analysis"}
	}

	var energies []float64
	for start := 0; start+frameLen <= len(clip.Samples); start += hopLen {
		sumSq := 0.0
		for _, s := range clip.Samples[start : start+frameLen] {
			v := float64(s) / 32768
			sumSq += v * v
		}
		rms := math.Sqrt(sumSq / float64(frameLen))
		if rms > 0 {
			energies = append(energies, rms)
		}
	}
	if len(energies) == 0 {
		return types.CheckResult{Status: types.CheckWarn, Message: "no energy detected in audio"}
	}

	threshold := percentile(energies, 30)

	var noiseSum, speechSum float64
	var noiseN, speechN int
	for _, e := range energies {
		if e <= threshold {
			noiseSum += e
			noiseN++
		} else {
			speechSum += e
			speechN++
		}
	}
	if noiseN == 0 || speechN == 0 {
		return types.CheckResult{Status: types.CheckWarn, Message: "cannot separate noise and speech"}
	}

	noiseRMS := noiseSum / float64(noiseN)
	speechRMS := speechSum / float64(speechN)

	var snr float64
	if noiseRMS == 0 {
		snr = 60.0
	} else {
		snr = 20 * math.Log10(speechRMS/noiseRMS)
	}

	metrics := map[string]any{"snr_db": round1(snr)}
	switch {
	case snr >= minDB:
		return types.CheckResult{Status: types.CheckPass, Metrics: metrics}
	case snr >= minDB-5:
		return types.CheckResult{Status: types.CheckWarn, Metrics: metrics}
	default:
		return types.CheckResult{
			Status:  types.CheckFail,
			Message: fmt.Sprintf("SNR %.1f dB below minimum %g dB.", snr, minDB),
			Metrics: metrics,
		}
	}
}

func percentile(sorted []float64, pct float64) float64 {
	values := append([]float64(nil), sorted...)
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}
	rank := pct / 100 * float64(len(values)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}

func checkClipping(clip pcm.Clip, thresholdDBFS float64) types.CheckResult {
	report := audioproc.DetectClipping(clip, thresholdDBFS)
	if !report.Clipped {
		return types.CheckResult{
			Status:  types.CheckPass,
			Metrics: map[string]any{"peak_dbfs": round2(report.PeakDBFS)},
		}
	}

	clipPct := 0.0
	if report.TotalSamples > 0 {
		clipPct = float64(report.ClippedSamples) / float64(report.TotalSamples) * 100
	}
	metrics := map[string]any{
		"peak_dbfs":      round2(report.PeakDBFS),
		"clipped_percent": round4(clipPct),
	}

	if clipPct < 0.01 {
		return types.CheckResult{Status: types.CheckWarn, Metrics: metrics}
	}
	return types.CheckResult{Status: types.CheckFail, Metrics: metrics}
}

func checkDuration(clip pcm.Clip, expectedMs, maxDeviationPct float64) types.CheckResult {
	actualMs := clip.DurationMs()
	if expectedMs <= 0 {
		return types.CheckResult{
			Status:  types.CheckPass,
			Metrics: map[string]any{"duration_sec": round1(actualMs / 1000)},
		}
	}

	deviationPct := math.Abs(actualMs-expectedMs) / expectedMs * 100
	metrics := map[string]any{
		"duration_sec":      round1(actualMs / 1000),
		"expected_sec":       round1(expectedMs / 1000),
		"deviation_percent": round1(deviationPct),
	}

	switch {
	case deviationPct <= maxDeviationPct:
		return types.CheckResult{Status: types.CheckPass, Metrics: metrics}
	case deviationPct <= maxDeviationPct*1.5:
		return types.CheckResult{Status: types.CheckWarn, Metrics: metrics}
	default:
		return types.CheckResult{
			Status: types.CheckFail,
			Message: fmt.Sprintf("Duration %.1fs deviates %.0f%% from expected %.1fs.",
				actualMs/1000, deviationPct, expectedMs/1000),
			Metrics: metrics,
		}
	}
}

func checkLUFS(ctx context.Context, measurer LUFSMeasurer, path string, target, maxDeviation float64) types.CheckResult {
	lufs, err := measurer.MeasureLUFS(ctx, path)
	if err != nil {
		return types.CheckResult{Status: types.CheckWarn, Message: fmt.Sprintf("LUFS measurement failed: %v", err)}
	}

	deviation := math.Abs(lufs - target)
	metrics := map[string]any{
		"lufs":      round1(lufs),
		"target":    round1(target),
		"deviation": round1(deviation),
	}

	switch {
	case deviation <= maxDeviation:
		return types.CheckResult{Status: types.CheckPass, Metrics: metrics}
	case deviation <= maxDeviation*2:
		return types.CheckResult{Status: types.CheckWarn, Metrics: metrics}
	default:
		return types.CheckResult{
			Status:  types.CheckFail,
			Message: fmt.Sprintf("LUFS %.1f deviates %.1f from target %g.", lufs, deviation, target),
			Metrics: metrics,
		}
	}
}

// FailureSummary renders a short "<check>: <message>" list for every check
// in result that failed, for use in retry/failure log lines.
func FailureSummary(result types.QCResult) string {
	var parts []string
	for name, check := range result.Checks {
		if check.Status == types.CheckFail {
			parts = append(parts, fmt.Sprintf("%s: %s", name, check.Message))
		}
	}
	if len(parts) == 0 {
		return "unknown QC failure"
	}
	sort.Strings(parts)
	return joinSemicolon(parts)
}

func joinSemicolon(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "; " + p
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// Package audioproc wraps the ffmpeg operations used to measure and
// normalize loudness and trim silence on rendered WAV files (§4.8), and
// computes clipping and peak level directly from decoded PCM samples.
// Loudness and silence trimming are subprocess calls rather than pure-Go
// arithmetic because broadcast-grade ITU-R BS.1770 loudness measurement and
// two-pass normalization are not something this module reimplements;
// ffmpeg's loudnorm and silenceremove filters are the standard tool for
// this, the same way the teacher shells out to ffmpeg for spectrograms.
package audioproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/socialawy/audioformation/internal/pcm"
)

// Processor runs ffmpeg subprocesses against a configured binary path.
type Processor struct {
	FFmpegPath string
}

// New returns a Processor using the given ffmpeg binary, defaulting to
// "ffmpeg" on PATH when empty.
func New(ffmpegPath string) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Processor{FFmpegPath: ffmpegPath}
}

// ClippingReport is the result of DetectClipping.
type ClippingReport struct {
	Clipped        bool
	PeakDBFS       float64
	ClippedSamples int
	TotalSamples   int
}

// DetectClipping counts samples whose absolute value exceeds the linear
// equivalent of thresholdDBFS, computed directly from decoded PCM16
// samples (no ffmpeg needed for this one).
func DetectClipping(clip pcm.Clip, thresholdDBFS float64) ClippingReport {
	total := len(clip.Samples)
	if total == 0 {
		return ClippingReport{PeakDBFS: -120.0}
	}

	thresholdLinear := math.Pow(10, thresholdDBFS/20) * 32768
	peak := 0.0
	clipped := 0
	for _, s := range clip.Samples {
		abs := math.Abs(float64(s))
		if abs > peak {
			peak = abs
		}
		if abs > thresholdLinear {
			clipped++
		}
	}

	peakDBFS := -120.0
	if peak > 0 {
		peakDBFS = 20 * math.Log10(peak/32768)
	}

	return ClippingReport{
		Clipped:        clipped > 0,
		PeakDBFS:       peakDBFS,
		ClippedSamples: clipped,
		TotalSamples:   total,
	}
}

// MeasureTruePeak returns the sample peak in dBFS, -120.0 for silence.
func MeasureTruePeak(clip pcm.Clip) float64 {
	peak := 0.0
	for _, s := range clip.Samples {
		if abs := math.Abs(float64(s)); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return -120.0
	}
	return 20 * math.Log10(peak/32768)
}

// MeasureLUFS runs a measurement-only ffmpeg loudnorm pass over path and
// returns the input_i (integrated loudness) field.
func (p *Processor) MeasureLUFS(ctx context.Context, path string) (float64, error) {
	stats, err := p.measureLoudnorm(ctx, path, -16.0, -1.0)
	if err != nil {
		return 0, err
	}
	lufs, err := strconv.ParseFloat(stats.InputI, 64)
	if err != nil {
		return 0, fmt.Errorf("audioproc: parse measured LUFS: %w", err)
	}
	return lufs, nil
}

type loudnormStats struct {
	InputI      string `json:"input_i"`
	InputLRA    string `json:"input_lra"`
	InputTP     string `json:"input_tp"`
	InputThresh string `json:"input_thresh"`
}

func (p *Processor) measureLoudnorm(ctx context.Context, path string, targetLUFS, truePeak float64) (loudnormStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	filter := fmt.Sprintf("loudnorm=I=%g:TP=%g:print_format=json", targetLUFS, truePeak)
	cmd := exec.CommandContext(ctx, p.FFmpegPath, "-hide_banner", "-i", path, "-af", filter, "-f", "null", "-")

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output

	log.Printf("ffmpeg loudnorm measure: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return loudnormStats{}, fmt.Errorf("audioproc: ffmpeg measure pass: %w", err)
	}

	stats, err := parseLoudnormStats(output.Bytes())
	if err != nil {
		return loudnormStats{}, err
	}
	return stats, nil
}

// parseLoudnormStats extracts the trailing JSON block ffmpeg writes to
// stderr after a loudnorm print_format=json pass.
func parseLoudnormStats(stderr []byte) (loudnormStats, error) {
	start := bytes.LastIndexByte(stderr, '{')
	end := bytes.LastIndexByte(stderr, '}')
	if start == -1 || end <= start {
		return loudnormStats{}, fmt.Errorf("audioproc: no loudnorm JSON block in ffmpeg output")
	}

	var stats loudnormStats
	if err := json.Unmarshal(stderr[start:end+1], &stats); err != nil {
		return loudnormStats{}, fmt.Errorf("audioproc: decode loudnorm stats: %w", err)
	}
	if stats.InputI == "" {
		stats.InputI = "-24.0"
	}
	if stats.InputLRA == "" {
		stats.InputLRA = "7.0"
	}
	if stats.InputTP == "" {
		stats.InputTP = "-2.0"
	}
	if stats.InputThresh == "" {
		stats.InputThresh = "-34.0"
	}
	return stats, nil
}

// NormalizeLUFS runs a two-pass ffmpeg loudnorm: measure, then apply with
// the measured stats and linear=true so a single gain is applied rather
// than ffmpeg's default dynamic compression.
func (p *Processor) NormalizeLUFS(ctx context.Context, inputPath, outputPath string, targetLUFS, truePeak float64) error {
	measured, err := p.measureLoudnorm(ctx, inputPath, targetLUFS, truePeak)
	if err != nil {
		return err
	}

	applyCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	filter := fmt.Sprintf(
		"loudnorm=I=%g:TP=%g:measured_I=%s:measured_LRA=%s:measured_TP=%s:measured_thresh=%s:linear=true",
		targetLUFS, truePeak, measured.InputI, measured.InputLRA, measured.InputTP, measured.InputThresh,
	)
	cmd := exec.CommandContext(applyCtx, p.FFmpegPath, "-hide_banner", "-y", "-i", inputPath, "-af", filter, outputPath)

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output

	log.Printf("ffmpeg loudnorm apply: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audioproc: ffmpeg normalize pass: %w\noutput: %s", err, output.String())
	}
	return nil
}

// TrimSilence strips leading and trailing silence below thresholdDB using
// a forward silenceremove pass, a reverse, a second silenceremove, and a
// second reverse — the standard ffmpeg idiom for trimming both ends with
// a single filter that only trims from the start.
func (p *Processor) TrimSilence(ctx context.Context, inputPath, outputPath string, thresholdDB float64, minSilenceMs int) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	durationSec := float64(minSilenceMs) / 1000
	filter := fmt.Sprintf(
		"silenceremove=start_periods=1:start_threshold=%gdB:start_duration=%g,areverse,"+
			"silenceremove=start_periods=1:start_threshold=%gdB:start_duration=%g,areverse",
		thresholdDB, durationSec, thresholdDB, durationSec,
	)
	cmd := exec.CommandContext(ctx, p.FFmpegPath, "-hide_banner", "-y", "-i", inputPath, "-af", filter, outputPath)

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output

	log.Printf("ffmpeg trim silence: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audioproc: ffmpeg trim silence: %w\noutput: %s", err, output.String())
	}
	return nil
}

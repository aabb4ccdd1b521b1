// Package mix implements the VAD-ducking mixer (§4.10): loop the
// background bed to cover the voice track, build a millisecond-resolution
// gain envelope from detected speech windows, smooth it, resample it to
// the audio sample rate, and overlay voice over ducked background.
package mix

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"github.com/socialawy/audioformation/internal/pcm"
	"github.com/socialawy/audioformation/pkg/types"
)

// energyThresholdDBFS is the fixed RMS threshold the energy-based speech
// detector uses, matching the original's hardcoded -40.0.
const energyThresholdDBFS = -40.0

// energyChunkMs is the original's fixed analysis chunk size.
const energyChunkMs = 50

// speechWindow is one detected speech region, in milliseconds.
type speechWindow struct {
	startMs, endMs int
}

// Mixer mixes a voice track with an optional background bed, ducking the
// bed under detected speech.
type Mixer struct {
	Config types.MixConfig

	vadWarnOnce sync.Once
}

// New builds a Mixer from a project's mix configuration.
func New(cfg types.MixConfig) *Mixer {
	return &Mixer{Config: cfg}
}

// MixChapter mixes voicePath with the optional musicPath bed and writes the
// result to outputPath. An empty musicPath (or one that doesn't exist)
// mixes voice alone at master volume, matching the original's no-music
// shortcut.
func (m *Mixer) MixChapter(voicePath, musicPath, outputPath string) error {
	voice, err := pcm.ReadFile(voicePath)
	if err != nil {
		return fmt.Errorf("mix: read voice: %w", err)
	}

	hasMusic := musicPath != ""
	if hasMusic {
		if _, err := os.Stat(musicPath); err != nil {
			hasMusic = false
		}
	}

	if !hasMusic {
		out := applyGain(voice, m.Config.MasterVolume)
		if err := pcm.WriteFile(outputPath, out); err != nil {
			return fmt.Errorf("mix: write output: %w", err)
		}
		return nil
	}

	music, err := pcm.ReadFile(musicPath)
	if err != nil {
		return fmt.Errorf("mix: read music: %w", err)
	}

	targetMs := voice.DurationMs() + 2000
	music = loopToLength(music, targetMs)

	totalMs := int(targetMs)
	envelope := m.generateEnvelope(voice, totalMs)
	ducked := applyEnvelopeToClip(music, envelope)

	combined := overlay(ducked, voice)
	if m.Config.MasterVolume != 1.0 {
		combined = applyGain(combined, m.Config.MasterVolume)
	}

	if err := pcm.WriteFile(outputPath, combined); err != nil {
		return fmt.Errorf("mix: write output: %w", err)
	}
	return nil
}

// generateEnvelope returns a millisecond-resolution gain curve (1.0 = full
// volume, <1.0 = ducked) covering totalMs of background.
func (m *Mixer) generateEnvelope(voice pcm.Clip, totalMs int) []float64 {
	envelope := make([]float64, totalMs)
	for i := range envelope {
		envelope[i] = 1.0
	}

	ducking := m.Config.Ducking
	if ducking.Method == "vad" {
		m.vadWarnOnce.Do(func() {
			log.Printf("mix: neural VAD backend not available, falling back to energy-based ducking")
		})
	}
	// Only the energy method is implemented; any configured method value
	// resolves to it, matching the mandatory silent-downgrade behavior.
	windows := energyTimestamps(voice)

	attenuation := math.Pow(10, ducking.AttenuationDB/20)
	for _, w := range windows {
		start := maxInt(0, w.startMs-ducking.LookAheadMs)
		end := minInt(totalMs, w.endMs+ducking.ReleaseMs)
		for i := start; i < end; i++ {
			envelope[i] = attenuation
		}
	}

	windowSize := minInt(ducking.AttackMs, ducking.ReleaseMs)
	if windowSize > 0 && len(windows) > 0 {
		envelope = movingAverageSame(envelope, windowSize)

		edge := minInt(windowSize, 100)
		if edge > 1 {
			fadeIn := linspace(1.0, envelope[edge-1], edge)
			copy(envelope[:edge], fadeIn)
			fadeOut := linspace(envelope[len(envelope)-edge], 1.0, edge)
			copy(envelope[len(envelope)-edge:], fadeOut)
		}
	}

	return envelope
}

// energyTimestamps is a simple RMS-threshold speech detector: it walks
// voice in energyChunkMs windows and reports contiguous runs whose dBFS
// exceeds energyThresholdDBFS.
func energyTimestamps(voice pcm.Clip) []speechWindow {
	if voice.SampleRate == 0 {
		return nil
	}
	chunkSamples := voice.SampleRate * energyChunkMs / 1000
	if chunkSamples <= 0 {
		return nil
	}

	var windows []speechWindow
	isSpeech := false
	startMs := 0

	totalMs := int(voice.DurationMs())
	for i := 0; i < len(voice.Samples); i += chunkSamples {
		end := i + chunkSamples
		if end > len(voice.Samples) {
			end = len(voice.Samples)
		}
		ms := i * 1000 / voice.SampleRate
		chunkDBFS := dbfs(voice.Samples[i:end])

		if chunkDBFS > energyThresholdDBFS {
			if !isSpeech {
				isSpeech = true
				startMs = ms
			}
		} else if isSpeech {
			isSpeech = false
			windows = append(windows, speechWindow{startMs: startMs, endMs: ms})
		}
	}
	if isSpeech {
		windows = append(windows, speechWindow{startMs: startMs, endMs: totalMs})
	}
	return windows
}

func dbfs(samples []int) float64 {
	if len(samples) == 0 {
		return -120.0
	}
	sumSq := 0.0
	for _, s := range samples {
		v := float64(s) / 32768
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return -120.0
	}
	return 20 * math.Log10(rms)
}

// movingAverageSame convolves signal with a uniform kernel of the given
// size, 'same'-mode (output length equals input length, kernel centered).
func movingAverageSame(signal []float64, window int) []float64 {
	out := make([]float64, len(signal))
	half := window / 2
	// The original's np.convolve(..., mode='same') divides by the full
	// kernel size regardless of how much of the kernel overlapped the
	// signal at the edges; match that rather than normalizing by overlap.
	for i := range signal {
		sum := 0.0
		for k := 0; k < window; k++ {
			j := i + k - half
			if j < 0 || j >= len(signal) {
				continue
			}
			sum += signal[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = start + step*float64(i)
	}
	return out
}

// loopToLength repeats clip until it covers targetMs, then trims to the
// exact sample count.
func loopToLength(clip pcm.Clip, targetMs float64) pcm.Clip {
	if clip.SampleRate == 0 || len(clip.Samples) == 0 {
		return clip
	}
	targetSamples := int(targetMs * float64(clip.SampleRate) / 1000)
	if len(clip.Samples) >= targetSamples {
		return pcm.Clip{Samples: append([]int(nil), clip.Samples[:targetSamples]...), SampleRate: clip.SampleRate}
	}

	out := make([]int, 0, targetSamples)
	for len(out) < targetSamples {
		out = append(out, clip.Samples...)
	}
	return pcm.Clip{Samples: out[:targetSamples], SampleRate: clip.SampleRate}
}

// applyEnvelopeToClip resamples a millisecond-resolution envelope to
// clip's sample rate via linear interpolation and multiplies it in.
func applyEnvelopeToClip(clip pcm.Clip, envelopeMs []float64) pcm.Clip {
	if len(envelopeMs) == 0 {
		return clip
	}
	resampled := resampleLinear(envelopeMs, len(clip.Samples))

	out := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		out[i] = clampInt16(float64(s) * resampled[i])
	}
	return pcm.Clip{Samples: out, SampleRate: clip.SampleRate}
}

// resampleLinear stretches an envelope of arbitrary length to targetLen
// samples via linear interpolation, clamping to the boundary values
// outside the source range — matching numpy.interp's default behavior.
func resampleLinear(envelope []float64, targetLen int) []float64 {
	out := make([]float64, targetLen)
	if targetLen == 0 {
		return out
	}
	if len(envelope) == 1 {
		for i := range out {
			out[i] = envelope[0]
		}
		return out
	}

	for i := 0; i < targetLen; i++ {
		x := float64(len(envelope)) * float64(i) / float64(targetLen)
		if x <= 0 {
			out[i] = envelope[0]
			continue
		}
		if x >= float64(len(envelope)-1) {
			out[i] = envelope[len(envelope)-1]
			continue
		}
		lo := int(math.Floor(x))
		frac := x - float64(lo)
		out[i] = envelope[lo]*(1-frac) + envelope[lo+1]*frac
	}
	return out
}

// overlay adds voice on top of background starting at position 0,
// clamping to int16 range.
func overlay(background, voice pcm.Clip) pcm.Clip {
	out := append([]int(nil), background.Samples...)
	for i, s := range voice.Samples {
		if i >= len(out) {
			break
		}
		out[i] = clampInt16(float64(out[i] + s))
	}
	return pcm.Clip{Samples: out, SampleRate: background.SampleRate}
}

// applyGain scales every sample by a linear gain factor.
func applyGain(clip pcm.Clip, gain float64) pcm.Clip {
	if gain == 1.0 {
		return clip
	}
	out := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		out[i] = clampInt16(float64(s) * gain)
	}
	return pcm.Clip{Samples: out, SampleRate: clip.SampleRate}
}

func clampInt16(v float64) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

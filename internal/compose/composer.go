// Package compose generates loopable ambient pad beds from oscillators,
// colored noise, and a slow LFO (§4.9). It is pure synthesis: no input
// audio, no ffmpeg, just math/rand/v2 and the shared internal/pcm encoder.
package compose

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/socialawy/audioformation/internal/pcm"
)

// WaveType selects a base oscillator shape.
type WaveType string

const (
	WaveSine     WaveType = "sine"
	WaveTriangle WaveType = "triangle"
	WaveSaw      WaveType = "saw"
)

// NoiseColor selects the noise layer's spectral tilt.
type NoiseColor string

const (
	NoiseWhite NoiseColor = "white"
	NoisePink  NoiseColor = "pink"
	NoiseBrown NoiseColor = "brown"
)

// LFOTarget selects what the LFO modulates. Only amplitude modulation is
// implemented; pitch modulation falls back to amplitude, matching the
// original's "skip for now, amplitude is fine" shortcut.
type LFOTarget string

const (
	LFOAmplitude LFOTarget = "amplitude"
	LFOPitch     LFOTarget = "pitch"
)

// Preset configures one mood's ambient pad.
type Preset struct {
	Name string

	BaseFreq      float64
	BaseType      WaveType
	BaseAmplitude float64

	DetuneCents      float64
	DetuneAmplitude  float64
	SubFreqRatio     float64
	SubAmplitude     float64
	NoiseAmplitude   float64
	NoiseColor       NoiseColor
	LFORate          float64
	LFODepth         float64
	LFOTarget        LFOTarget
	LowpassHz        float64
	HighpassHz       float64
	FadeInSeconds    float64
	FadeOutSeconds   float64
	SampleRate       int
}

// Presets is the fixed mood-name-to-preset table, ported verbatim from
// MOOD_PRESETS.
var Presets = map[string]Preset{
	"contemplative": {
		Name: "contemplative", BaseFreq: 130.81, BaseType: WaveSine, BaseAmplitude: 0.25,
		DetuneCents: 5.0, DetuneAmplitude: 0.15, SubFreqRatio: 0.5, SubAmplitude: 0.1,
		NoiseAmplitude: 0.03, NoiseColor: NoiseBrown, LFORate: 0.05, LFODepth: 0.2,
		LFOTarget: LFOAmplitude, LowpassHz: 1500, HighpassHz: 40,
		FadeInSeconds: 4.0, FadeOutSeconds: 4.0, SampleRate: 44100,
	},
	"tense": {
		Name: "tense", BaseFreq: 116.54, BaseType: WaveSaw, BaseAmplitude: 0.2,
		DetuneCents: 15.0, DetuneAmplitude: 0.18, SubFreqRatio: 0.5, SubAmplitude: 0.2,
		NoiseAmplitude: 0.08, NoiseColor: NoisePink, LFORate: 0.12, LFODepth: 0.4,
		LFOTarget: LFOAmplitude, LowpassHz: 1200, HighpassHz: 60,
		FadeInSeconds: 2.0, FadeOutSeconds: 3.0, SampleRate: 44100,
	},
	"wonder": {
		Name: "wonder", BaseFreq: 196.0, BaseType: WaveSine, BaseAmplitude: 0.25,
		DetuneCents: 3.0, DetuneAmplitude: 0.2, SubFreqRatio: 0.5, SubAmplitude: 0.08,
		NoiseAmplitude: 0.02, NoiseColor: NoiseWhite, LFORate: 0.06, LFODepth: 0.25,
		LFOTarget: LFOAmplitude, LowpassHz: 3000, HighpassHz: 40,
		FadeInSeconds: 5.0, FadeOutSeconds: 5.0, SampleRate: 44100,
	},
	"melancholy": {
		Name: "melancholy", BaseFreq: 146.83, BaseType: WaveTriangle, BaseAmplitude: 0.22,
		DetuneCents: 8.0, DetuneAmplitude: 0.15, SubFreqRatio: 0.5, SubAmplitude: 0.12,
		NoiseAmplitude: 0.04, NoiseColor: NoiseBrown, LFORate: 0.04, LFODepth: 0.35,
		LFOTarget: LFOAmplitude, LowpassHz: 1800, HighpassHz: 40,
		FadeInSeconds: 4.0, FadeOutSeconds: 5.0, SampleRate: 44100,
	},
	"triumph": {
		Name: "triumph", BaseFreq: 164.81, BaseType: WaveSaw, BaseAmplitude: 0.3,
		DetuneCents: 5.0, DetuneAmplitude: 0.25, SubFreqRatio: 0.5, SubAmplitude: 0.18,
		NoiseAmplitude: 0.03, NoiseColor: NoisePink, LFORate: 0.07, LFODepth: 0.2,
		LFOTarget: LFOAmplitude, LowpassHz: 2500, HighpassHz: 50,
		FadeInSeconds: 3.0, FadeOutSeconds: 4.0, SampleRate: 44100,
	},
	"silence": {
		Name: "silence", BaseFreq: 110.0, BaseType: WaveSine, BaseAmplitude: 0,
		DetuneCents: 7.0, DetuneAmplitude: 0, SubFreqRatio: 0.5, SubAmplitude: 0,
		NoiseAmplitude: 0, NoiseColor: NoisePink, LFORate: 0.08, LFODepth: 0,
		LFOTarget: LFOAmplitude, LowpassHz: 2000, HighpassHz: 40,
		FadeInSeconds: 3.0, FadeOutSeconds: 3.0, SampleRate: 44100,
	},
}

// ListPresets returns the available mood preset names.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}

// GetPreset looks up a mood preset by name.
func GetPreset(name string) (Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}

// GeneratePad synthesizes durationSec of an ambient pad from preset,
// deterministically reproducible from seed.
func GeneratePad(preset Preset, durationSec float64, seed uint64) (pcm.Clip, error) {
	sr := preset.SampleRate
	if sr <= 0 {
		sr = 44100
	}
	n := int(float64(sr) * durationSec)
	if n <= 0 {
		return pcm.Clip{}, fmt.Errorf("duration too short for sample rate %d", sr)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	mix := make([]float64, n)

	if preset.BaseAmplitude > 0 {
		base := oscillator(preset.BaseFreq, durationSec, sr, preset.BaseType)
		addScaled(mix, base, preset.BaseAmplitude)
	}

	if preset.DetuneAmplitude > 0 {
		detuneFreq := preset.BaseFreq * centsToRatio(preset.DetuneCents)
		detuned := oscillator(detuneFreq, durationSec, sr, preset.BaseType)
		addScaled(mix, detuned, preset.DetuneAmplitude)
	}

	if preset.SubAmplitude > 0 {
		subFreq := preset.BaseFreq * preset.SubFreqRatio
		sub := oscillator(subFreq, durationSec, sr, WaveSine)
		addScaled(mix, sub, preset.SubAmplitude)
	}

	if preset.NoiseAmplitude > 0 {
		noise := generateNoise(n, preset.NoiseColor, rng)
		addScaled(mix, noise, preset.NoiseAmplitude)
	}

	if preset.LFODepth > 0 {
		lfo := oscillator(preset.LFORate, durationSec, sr, WaveSine)
		for i, v := range lfo {
			lfo[i] = 1.0 - preset.LFODepth*0.5*(1.0+v) // range [1-depth, 1]
		}
		// Pitch modulation is not implemented (matches the original's
		// shortcut): both targets fall through to amplitude modulation.
		for i := range mix {
			mix[i] *= lfo[i]
		}
	}

	if preset.LowpassHz > 0 && preset.LowpassHz < float64(sr)/2 {
		mix = onePoleLowpass(mix, preset.LowpassHz, sr)
	}
	if preset.HighpassHz > 0 {
		mix = onePoleHighpass(mix, preset.HighpassHz, sr)
	}

	mix = applyEnvelope(mix, sr, preset.FadeInSeconds, preset.FadeOutSeconds)

	peak := 0.0
	for _, v := range mix {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		scale := 0.85 / peak
		for i := range mix {
			mix[i] *= scale
		}
	}

	samples := make([]int, n)
	for i, v := range mix {
		samples[i] = clampInt16(v * 32768)
	}

	return pcm.Clip{Samples: samples, SampleRate: sr}, nil
}

func oscillator(freq, durationSec float64, sr int, wave WaveType) []float64 {
	n := int(float64(sr) * durationSec)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		switch wave {
		case WaveTriangle:
			out[i] = 2*math.Abs(2*(t*freq-math.Floor(t*freq+0.5))) - 1
		case WaveSaw:
			out[i] = 2 * (t*freq - math.Floor(t*freq+0.5))
		default:
			out[i] = math.Sin(2 * math.Pi * freq * t)
		}
	}
	return out
}

func centsToRatio(cents float64) float64 {
	return math.Pow(2, cents/1200)
}

func addScaled(dst, src []float64, amplitude float64) {
	for i := range dst {
		dst[i] += src[i] * amplitude
	}
}

// generateNoise returns a unit-peak noise buffer of the requested color.
// Pink noise approximates the Voss-McCartney spectrum with a 64-sample
// rolling average over white noise; brown noise integrates white noise via
// cumulative sum with a linear-detrend high-pass to remove DC drift. Both
// are deliberate approximations, not exact pink/brown synthesis.
func generateNoise(n int, color NoiseColor, rng *rand.Rand) []float64 {
	switch color {
	case NoisePink:
		white := standardNormal(n, rng)
		pink := rollingAverage(white, 64)
		return normalizePeak(pink)
	case NoiseBrown:
		white := standardNormal(n, rng)
		brown := make([]float64, n)
		sum := 0.0
		for i, v := range white {
			sum += v
			brown[i] = sum
		}
		if n > 1 {
			start, end := brown[0], brown[n-1]
			step := (end - start) / float64(n-1)
			for i := range brown {
				brown[i] -= start + step*float64(i)
			}
		}
		return normalizePeak(brown)
	default:
		return normalizePeak(standardNormal(n, rng))
	}
}

func standardNormal(n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func rollingAverage(signal []float64, window int) []float64 {
	out := make([]float64, len(signal))
	half := window / 2
	for i := range signal {
		sum := 0.0
		count := 0
		for k := -half; k < window-half; k++ {
			j := i + k
			if j < 0 || j >= len(signal) {
				continue
			}
			sum += signal[j]
			count++
		}
		if count > 0 {
			out[i] = sum / float64(count)
		}
	}
	return out
}

func normalizePeak(signal []float64) []float64 {
	peak := 0.0
	for _, v := range signal {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		for i := range signal {
			signal[i] /= peak
		}
	}
	return signal
}

// onePoleLowpass is a first-order IIR lowpass: out[i] = out[i-1] +
// alpha*(in[i]-out[i-1]), alpha derived from the RC time constant.
func onePoleLowpass(signal []float64, cutoffHz float64, sr int) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sr)
	alpha := dt / (rc + dt)

	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}
	out[0] = alpha * signal[0]
	for i := 1; i < len(signal); i++ {
		out[i] = out[i-1] + alpha*(signal[i]-out[i-1])
	}
	return out
}

// onePoleHighpass is a first-order IIR highpass:
// out[i] = alpha*(out[i-1]+in[i]-in[i-1]).
func onePoleHighpass(signal []float64, cutoffHz float64, sr int) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sr)
	alpha := rc / (rc + dt)

	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}
	out[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		out[i] = alpha * (out[i-1] + signal[i] - signal[i-1])
	}
	return out
}

func applyEnvelope(signal []float64, sr int, fadeInSec, fadeOutSec float64) []float64 {
	n := len(signal)
	envelope := make([]float64, n)
	for i := range envelope {
		envelope[i] = 1
	}

	fadeInN := int(fadeInSec * float64(sr))
	if fadeInN > 0 {
		if fadeInN > n {
			fadeInN = n
		}
		for i := 0; i < fadeInN; i++ {
			envelope[i] = float64(i) / float64(fadeInN-1+boolToInt(fadeInN == 1))
		}
	}

	fadeOutN := int(fadeOutSec * float64(sr))
	if fadeOutN > 0 {
		if fadeOutN > n {
			fadeOutN = n
		}
		for i := 0; i < fadeOutN; i++ {
			envelope[n-fadeOutN+i] = 1 - float64(i)/float64(fadeOutN-1+boolToInt(fadeOutN == 1))
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = signal[i] * envelope[i]
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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

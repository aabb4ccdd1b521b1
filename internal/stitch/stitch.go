// Package stitch concatenates per-chunk PCM clips into one chapter-length
// clip, applying an equal-power crossfade at each seam and an optional
// leading silence (§4.6).
package stitch

import (
	"fmt"
	"math"

	"github.com/socialawy/audioformation/internal/pcm"
)

// Stitch concatenates clips in order, crossfading each seam by
// min(crossfadeMs, dur(prev), dur(next)) and prepending leadingSilenceMs
// of silence. All clips must share a sample rate.
func Stitch(clips []pcm.Clip, crossfadeMs, leadingSilenceMs int) (pcm.Clip, error) {
	if len(clips) == 0 {
		return pcm.Clip{}, fmt.Errorf("stitch: no clips given")
	}

	sampleRate := clips[0].SampleRate
	for _, c := range clips {
		if c.SampleRate != sampleRate {
			return pcm.Clip{}, fmt.Errorf("stitch: mismatched sample rates (%d vs %d)", c.SampleRate, sampleRate)
		}
	}

	var out []int
	if leadingSilenceMs > 0 {
		out = make([]int, sampleRate*leadingSilenceMs/1000)
	}

	out = append(out, clips[0].Samples...)

	for i := 1; i < len(clips); i++ {
		prevLen := len(out)
		nextLen := len(clips[i].Samples)
		fadeSamples := crossfadeMs * sampleRate / 1000
		if fadeSamples > prevLen {
			fadeSamples = prevLen
		}
		if fadeSamples > nextLen {
			fadeSamples = nextLen
		}
		if fadeSamples < 0 {
			fadeSamples = 0
		}

		if fadeSamples == 0 {
			out = append(out, clips[i].Samples...)
			continue
		}

		tailStart := prevLen - fadeSamples
		for j := 0; j < fadeSamples; j++ {
			frac := float64(j) / float64(fadeSamples)
			fadeOut := math.Cos(frac * math.Pi / 2)
			fadeIn := math.Sin(frac * math.Pi / 2)
			mixed := float64(out[tailStart+j])*fadeOut + float64(clips[i].Samples[j])*fadeIn
			out[tailStart+j] = clampInt16(mixed)
		}
		out = append(out, clips[i].Samples[fadeSamples:]...)
	}

	return pcm.Clip{Samples: out, SampleRate: sampleRate}, nil
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

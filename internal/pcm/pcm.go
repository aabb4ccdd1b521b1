// Package pcm provides the shared 16-bit mono WAV read/write helpers used
// by the stitcher, composer, mixer, and QC scanner. All pipeline audio is
// produced and consumed as mono PCM16 at the project's working sample
// rate; ffmpeg handles everything else (loudness, trimming, encoding).
package pcm

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a decoded mono PCM16 buffer plus its sample rate.
type Clip struct {
	Samples    []int // one int per sample, already scaled to int16 range
	SampleRate int
}

// DurationMs returns the clip's duration in milliseconds.
func (c Clip) DurationMs() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return 1000 * float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadFile decodes a 16-bit mono (or downmixed-to-mono) WAV file into a
// Clip.
func ReadFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a WAV stream into a Clip, downmixing to mono if the source
// has more than one channel.
func Read(r io.Reader) (Clip, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return Clip{}, fmt.Errorf("wav decode requires a seekable reader")
	}

	decoder := wav.NewDecoder(rs)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Clip{}, fmt.Errorf("input is not a valid WAV file")
	}

	numChans := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)

	buf := &audio.IntBuffer{
		Data:   make([]int, 4096*max(numChans, 1)),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: numChans},
	}

	var samples []int
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return Clip{}, fmt.Errorf("read wav samples: %w", err)
		}
		if n == 0 {
			break
		}
		chunk := buf.Data[:n]
		if numChans <= 1 {
			samples = append(samples, chunk...)
			continue
		}
		for i := 0; i+numChans <= len(chunk); i += numChans {
			sum := 0
			for c := 0; c < numChans; c++ {
				sum += chunk[i+c]
			}
			samples = append(samples, sum/numChans)
		}
	}

	return Clip{Samples: samples, SampleRate: sampleRate}, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WriteFile encodes a mono PCM16 Clip to a new WAV file at path.
func WriteFile(path string, clip Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, clip)
}

// Write encodes a mono PCM16 Clip as a WAV stream.
func Write(w io.WriteSeeker, clip Clip) error {
	encoder := wav.NewEncoder(w, clip.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:   clip.Samples,
		Format: &audio.Format{SampleRate: clip.SampleRate, NumChannels: 1},
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

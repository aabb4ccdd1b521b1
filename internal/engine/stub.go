package engine

import (
	"context"
	"encoding/binary"
	"math"
)

// StubEngine is a deterministic engine with no external dependencies, used
// in tests and as a working default when no real TTS backend is
// configured. It returns a fixed-tone 16-bit mono WAV whose length is
// proportional to input text length, so stitching and QC have something
// real to measure.
type StubEngine struct {
	name       string
	sampleRate int
}

// NewStubEngine constructs a StubEngine. Matches the Factory signature so
// it can be registered directly.
func NewStubEngine(name string, options map[string]string) (TTSEngine, error) {
	return &StubEngine{name: name, sampleRate: 22050}, nil
}

func (s *StubEngine) Name() string { return s.name }

func (s *StubEngine) Capabilities() Capabilities {
	return Capabilities{SupportsCloning: false, SupportsSSML: false, RequiresGPU: false}
}

// Generate synthesizes a constant 220 Hz tone as a WAV buffer whose
// duration scales with len(req.Text), 60ms per character, floored at 200ms
// so even single-word chunks produce a measurable clip.
func (s *StubEngine) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	if req.Text == "" {
		return &GenerationResult{Success: false, ErrorKind: "invalid_input", Message: "empty text"}, nil
	}

	durationMs := len(req.Text) * 60
	if durationMs < 200 {
		durationMs = 200
	}
	numSamples := s.sampleRate * durationMs / 1000
	dataLen := numSamples * 2

	// Canonical 44-byte RIFF/WAVE header: PCM, mono, 16-bit.
	wav := make([]byte, 44+dataLen)
	le := binary.LittleEndian
	copy(wav[0:], "RIFF")
	le.PutUint32(wav[4:], uint32(36+dataLen))
	copy(wav[8:], "WAVEfmt ")
	le.PutUint32(wav[16:], 16)
	le.PutUint32(wav[20:], 1|1<<16) // format 1 (PCM), 1 channel
	le.PutUint32(wav[24:], uint32(s.sampleRate))
	le.PutUint32(wav[28:], uint32(s.sampleRate*2))
	le.PutUint32(wav[32:], 2|16<<16) // block align 2, 16 bits per sample
	copy(wav[36:], "data")
	le.PutUint32(wav[40:], uint32(dataLen))

	const freq = 220.0
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(s.sampleRate)
		sample := int16(3000.0 * math.Sin(2*math.Pi*freq*t))
		le.PutUint16(wav[44+2*i:], uint16(sample))
	}

	return &GenerationResult{
		Success:    true,
		AudioPCM:   wav,
		SampleRate: s.sampleRate,
	}, nil
}

func (s *StubEngine) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "stub-voice-1", Name: "Stub Voice 1", Languages: []string{"en"}},
		{ID: "stub-voice-2", Name: "Stub Voice 2", Languages: []string{"en", "ar"}},
	}, nil
}

func (s *StubEngine) TestConnection(ctx context.Context) error { return nil }

func (s *StubEngine) Close() error { return nil }

var _ TTSEngine = (*StubEngine)(nil)

func init() {
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	_ = defaultRegistry.RegisterFactory("stub", NewStubEngine)
	_ = defaultRegistry.RegisterFactory("edgehttp", NewEdgeHTTPEngine)
}

var defaultRegistry *Registry

// DefaultRegistry returns the package-level registry with the built-in
// engine kinds ("stub", "edgehttp") pre-registered. Callers are free to
// construct their own Registry instead when they want isolation (tests
// typically do).
func DefaultRegistry() *Registry { return defaultRegistry }

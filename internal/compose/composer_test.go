package compose

import (
	"math"
	"testing"
)

func TestGetPreset_Unknown(t *testing.T) {
	if _, err := GetPreset("nonexistent"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestListPresets_ContainsKnownMoods(t *testing.T) {
	names := ListPresets()
	want := map[string]bool{"contemplative": true, "tense": true, "wonder": true, "melancholy": true, "triumph": true, "silence": true}
	got := map[string]bool{}
	for _, n := range names {
		got[n] = true
	}
	for name := range want {
		if !got[name] {
			t.Errorf("ListPresets() missing %q", name)
		}
	}
}

func TestGeneratePad_Deterministic(t *testing.T) {
	preset, err := GetPreset("contemplative")
	if err != nil {
		t.Fatalf("GetPreset() error = %v", err)
	}

	a, err := GeneratePad(preset, 1.0, 42)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}
	b, err := GeneratePad(preset, 1.0, 42)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}

	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("len mismatch: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs: %d vs %d; same seed must reproduce identical output", i, a.Samples[i], b.Samples[i])
		}
	}
}

func TestGeneratePad_DifferentSeedsDiffer(t *testing.T) {
	preset, _ := GetPreset("tense")

	a, err := GeneratePad(preset, 1.0, 1)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}
	b, err := GeneratePad(preset, 1.0, 2)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}

	differs := false
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("expected different seeds to produce different noise layers")
	}
}

func TestGeneratePad_PeaksNearHeadroomTarget(t *testing.T) {
	preset, _ := GetPreset("triumph")
	clip, err := GeneratePad(preset, 2.0, 7)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}

	peak := 0
	for _, s := range clip.Samples {
		v := s
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	wantPeak := int(0.85 * 32768)
	// Normalization targets exactly 0.85 of full scale; allow integer
	// rounding slack.
	if diff := peak - wantPeak; diff < -2 || diff > 2 {
		t.Errorf("peak sample = %d, want ~%d (0.85 full scale)", peak, wantPeak)
	}
}

func TestGeneratePad_SilencePresetStaysQuiet(t *testing.T) {
	preset, _ := GetPreset("silence")
	clip, err := GeneratePad(preset, 1.0, 1)
	if err != nil {
		t.Fatalf("GeneratePad() error = %v", err)
	}
	for _, s := range clip.Samples {
		if s != 0 {
			t.Fatalf("silence preset produced nonzero sample %d", s)
		}
	}
}

func TestGeneratePad_RejectsZeroDuration(t *testing.T) {
	preset, _ := GetPreset("wonder")
	if _, err := GeneratePad(preset, 0, 1); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestOscillator_SineMatchesMath(t *testing.T) {
	out := oscillator(1.0, 1.0, 1000, WaveSine)
	want := math.Sin(2 * math.Pi * 1.0 * 0.5)
	if diff := out[500] - want; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("sine sample = %v, want %v", out[500], want)
	}
}

func TestCentsToRatio_OctaveIsDoubleFrequency(t *testing.T) {
	if got := centsToRatio(1200); got < 1.999 || got > 2.001 {
		t.Errorf("centsToRatio(1200) = %v, want ~2.0 (one octave)", got)
	}
}

package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/socialawy/audioformation/internal/pcm"
)

func TestComposeBed_WritesPadUnderMusicGenerated(t *testing.T) {
	dir := t.TempDir()

	outputPath, err := ComposeBed(dir, "contemplative", 0.05, 42)
	if err != nil {
		t.Fatalf("ComposeBed returned error: %v", err)
	}

	want := filepath.Join(dir, "05_MUSIC", "generated", "contemplative.wav")
	if outputPath != want {
		t.Errorf("outputPath = %q, want %q", outputPath, want)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}

	clip, err := pcm.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(clip.Samples) == 0 {
		t.Error("expected non-empty pad samples")
	}
}

func TestComposeBed_UnknownPresetErrors(t *testing.T) {
	if _, err := ComposeBed(t.TempDir(), "nonexistent", 1.0, 1); err == nil {
		t.Error("expected error for unknown preset")
	}
}

package mix

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMixChapters_MixesStitchedChaptersAgainstSharedBed(t *testing.T) {
	dir := t.TempDir()
	processedDir := filepath.Join(dir, "03_GENERATED", "processed")
	musicDir := filepath.Join(dir, "05_MUSIC", "generated")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(musicDir, 0o755); err != nil {
		t.Fatal(err)
	}

	writeClip(t, processedDir, "ch01.wav", toneClip(16000, 300, 0.4))
	writeClip(t, processedDir, "ch02.wav", toneClip(16000, 300, 0.4))
	writeClip(t, processedDir, "ch01_000.wav", toneClip(16000, 100, 0.4)) // chunk file, excluded
	writeClip(t, musicDir, "contemplative.wav", toneClip(16000, 2000, 0.1))

	report, err := MixChapters(defaultMixConfig(), dir)
	if err != nil {
		t.Fatalf("MixChapters returned error: %v", err)
	}
	if report.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", report.TotalFiles)
	}
	if !report.AllSucceeded() {
		t.Errorf("expected all chapters to mix cleanly, got %+v", report)
	}

	renderDir := filepath.Join(dir, "06_MIX", "renders")
	for _, name := range []string{"ch01.wav", "ch02.wav"} {
		if _, err := os.Stat(filepath.Join(renderDir, name)); err != nil {
			t.Errorf("expected rendered file %s: %v", name, err)
		}
	}
}

func TestMixChapters_FallsBackToRawWhenNoProcessedFiles(t *testing.T) {
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "03_GENERATED", "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeClip(t, rawDir, "ch01.wav", toneClip(16000, 300, 0.4))

	report, err := MixChapters(defaultMixConfig(), dir)
	if err != nil {
		t.Fatalf("MixChapters returned error: %v", err)
	}
	if report.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", report.TotalFiles)
	}
}

func TestMixChapters_NoVoiceFilesErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := MixChapters(defaultMixConfig(), dir); err == nil {
		t.Error("expected error when no voice files exist")
	}
}

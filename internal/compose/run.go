package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/socialawy/audioformation/internal/pcm"
)

// ComposeBed synthesizes one ambient pad for the named mood preset and
// writes it to <projectDir>/05_MUSIC/generated/<preset>.wav. It is the
// compose node's sole operation: the node produces a shared background
// bed for the mixer to loop under speech, not a per-chapter track — the
// project model carries no per-chapter mood assignment.
func ComposeBed(projectDir, preset string, durationSec float64, seed uint64) (string, error) {
	p, err := GetPreset(preset)
	if err != nil {
		return "", err
	}

	clip, err := GeneratePad(p, durationSec, seed)
	if err != nil {
		return "", fmt.Errorf("compose: generate pad: %w", err)
	}

	outputDir := filepath.Join(projectDir, "05_MUSIC", "generated")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("compose: create output dir: %w", err)
	}

	outputPath := filepath.Join(outputDir, preset+".wav")
	if err := pcm.WriteFile(outputPath, clip); err != nil {
		return "", fmt.Errorf("compose: write bed: %w", err)
	}
	return outputPath, nil
}

// Package process implements the process node (§4.8 applied at node
// granularity): trimming silence and loudness-normalizing every stitched
// chapter WAV in 03_GENERATED/raw into 03_GENERATED/processed.
package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/pkg/types"
)

// defaultSilenceThresholdDB and defaultMinSilenceMs match the original's
// trim_silence defaults; the node has no project-config knob for them
// (only qc_final.silence_threshold_dbfs configures the QC-final gate's
// own silence-gap detector, a different check).
const (
	defaultSilenceThresholdDB = -40.0
	defaultMinSilenceMs       = 100
)

// ChapterResult is one chapter WAV's processing outcome.
type ChapterResult struct {
	Chapter string
	Output  string
	OK      bool
	Error   string
}

// Report is the outcome of one ProcessChapters call.
type Report struct {
	TotalFiles int
	Processed  int
	Failed     int
	Results    []ChapterResult
}

// AllSucceeded reports whether every discovered chapter file normalized
// cleanly — the condition for the process node's status to be complete
// rather than partial.
func (r Report) AllSucceeded() bool {
	return r.TotalFiles > 0 && r.Failed == 0
}

// isChapterFile reports whether name is a stitched chapter file ("ch01.wav")
// rather than a per-chunk raw file ("ch01_000.wav").
func isChapterFile(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return !strings.Contains(stem, "_")
}

// ProcessChapters trims silence then LUFS-normalizes every stitched
// chapter WAV under <projectDir>/03_GENERATED/raw, writing results to
// <projectDir>/03_GENERATED/processed. Stitched chapter files are
// distinguished from per-chunk raw files by name: a per-chunk file's stem
// contains an underscore-separated index (e.g. "ch01_000.wav"); a
// stitched chapter file's stem does not (e.g. "ch01.wav").
func ProcessChapters(ctx context.Context, proc *audioproc.Processor, projectDir string, mix types.MixConfig) (Report, error) {
	rawDir := filepath.Join(projectDir, "03_GENERATED", "raw")
	processedDir := filepath.Join(projectDir, "03_GENERATED", "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("process: create processed dir: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(rawDir, "*.wav"))
	if err != nil {
		return Report{}, fmt.Errorf("process: glob raw dir: %w", err)
	}

	var chapterFiles []string
	for _, m := range matches {
		if isChapterFile(filepath.Base(m)) {
			chapterFiles = append(chapterFiles, m)
		}
	}
	sort.Strings(chapterFiles)

	if len(chapterFiles) == 0 {
		return Report{}, fmt.Errorf("process: no stitched chapter files found in %s", rawDir)
	}

	targetLUFS := mix.TargetLUFS
	truePeak := mix.TruePeakLimitDBTP

	report := Report{TotalFiles: len(chapterFiles)}
	for _, wavPath := range chapterFiles {
		name := filepath.Base(wavPath)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		outputPath := filepath.Join(processedDir, name)
		trimmedPath := filepath.Join(processedDir, stem+"_trimmed.wav")

		source := wavPath
		if err := proc.TrimSilence(ctx, wavPath, trimmedPath, defaultSilenceThresholdDB, defaultMinSilenceMs); err == nil {
			if _, statErr := os.Stat(trimmedPath); statErr == nil {
				source = trimmedPath
			}
		}

		result := ChapterResult{Chapter: stem, Output: outputPath}
		if err := proc.NormalizeLUFS(ctx, source, outputPath, targetLUFS, truePeak); err != nil {
			result.Error = err.Error()
			report.Failed++
		} else {
			result.OK = true
			report.Processed++
		}
		report.Results = append(report.Results, result)

		if trimmedPath != outputPath {
			os.Remove(trimmedPath)
		}
	}

	return report, nil
}

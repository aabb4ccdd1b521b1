package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/socialawy/audioformation/pkg/types"
)

// FileResult is one chapter's export outcome.
type FileResult struct {
	Chapter string
	Output  string
	OK      bool
	Error   string
}

// Report is the outcome of one RunExport call.
type Report struct {
	Format     string
	TotalFiles int
	Exported   int
	Failed     int
	Results    []FileResult
	Manifest   string
}

// AllSucceeded reports whether every chapter exported cleanly.
func (r Report) AllSucceeded() bool {
	return r.TotalFiles > 0 && r.Failed == 0
}

// RunExport exports every stitched chapter under projectDir to format
// ("mp3", "wav", or "m4b"), taking the mixed renders in 06_MIX/renders as
// the source when present, else 03_GENERATED/processed, else
// 03_GENERATED/raw (processed audio is normalized; raw isn't), writes the
// result under 07_EXPORT, and generates a manifest
// over the whole export tree. bitrateKbps overrides cfg.MP3Bitrate when
// positive; bookTitle and cfg.Metadata/CoverArt feed the M4B chapter
// document.
func RunExport(ctx context.Context, exp *Exporter, projectDir, projectID string, cfg types.ExportConfig, chapters []types.Chapter, bookTitle, format string, bitrateKbps int) (Report, error) {
	sourceDir := filepath.Join(projectDir, "06_MIX", "renders")
	if !hasChapterFiles(sourceDir) {
		sourceDir = filepath.Join(projectDir, "03_GENERATED", "processed")
	}
	if !hasChapterFiles(sourceDir) {
		sourceDir = filepath.Join(projectDir, "03_GENERATED", "raw")
	}

	files, err := chapterFiles(sourceDir)
	if err != nil {
		return Report{}, fmt.Errorf("export: list chapter files: %w", err)
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("export: no stitched chapter files found under %s", sourceDir)
	}

	exportDir := filepath.Join(projectDir, "07_EXPORT")
	chaptersDir := filepath.Join(exportDir, "chapters")
	if err := os.MkdirAll(chaptersDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("export: create chapters dir: %w", err)
	}

	bitrate := cfg.MP3Bitrate
	if bitrateKbps > 0 {
		bitrate = bitrateKbps
	}

	titleByID := map[string]string{}
	for _, ch := range chapters {
		titleByID[ch.ID] = ch.Title
	}

	report := Report{Format: format, TotalFiles: len(files)}
	var renders []ChapterRender

	for _, wavPath := range files {
		id := stemName(wavPath)
		result := FileResult{Chapter: id}

		switch format {
		case "wav":
			outputPath := filepath.Join(chaptersDir, id+".wav")
			if err := copyFile(wavPath, outputPath); err != nil {
				result.Error = err.Error()
				report.Failed++
			} else {
				result.Output = outputPath
				result.OK = true
				report.Exported++
			}
		case "m4b":
			// M4B assembles every chapter into one audiobook file below;
			// per-chapter entries only record the source used.
			result.Output = wavPath
			result.OK = true
			report.Exported++
			renders = append(renders, ChapterRender{Path: wavPath, Title: titleByID[id]})
		default: // "mp3"
			outputPath := filepath.Join(chaptersDir, id+".mp3")
			if err := exp.ExportMP3(ctx, wavPath, outputPath, bitrate); err != nil {
				result.Error = err.Error()
				report.Failed++
			} else {
				result.Output = outputPath
				result.OK = true
				report.Exported++
			}
		}
		report.Results = append(report.Results, result)
	}

	if format == "m4b" {
		audiobookDir := filepath.Join(exportDir, "audiobook")
		if err := os.MkdirAll(audiobookDir, 0o755); err != nil {
			return report, fmt.Errorf("export: create audiobook dir: %w", err)
		}
		outputPath := filepath.Join(audiobookDir, bookTitle+".m4b")
		workDir := filepath.Join(audiobookDir, ".work")
		if err := exp.ExportM4B(ctx, renders, cfg, bookTitle, workDir, outputPath); err != nil {
			report.Failed = len(renders)
			report.Exported = 0
			return report, fmt.Errorf("export: assemble m4b: %w", err)
		}
	}

	manifestPath, err := GenerateManifest(exportDir, projectID, cfg.Metadata)
	if err != nil {
		return report, fmt.Errorf("export: generate manifest: %w", err)
	}
	report.Manifest = manifestPath

	return report, nil
}

func hasChapterFiles(dir string) bool {
	files, err := chapterFiles(dir)
	return err == nil && len(files) > 0
}

// chapterFiles returns the stitched chapter WAVs in dir, sorted by name.
func chapterFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		if !strings.Contains(stemName(m), "_") {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func stemName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

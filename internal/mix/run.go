package mix

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/socialawy/audioformation/pkg/types"
)

// ChapterResult is one chapter's mixing outcome.
type ChapterResult struct {
	Chapter string
	Output  string
	OK      bool
	Error   string
}

// Report is the outcome of one MixChapters call.
type Report struct {
	TotalFiles int
	Mixed      int
	Failed     int
	Results    []ChapterResult
}

// AllSucceeded reports whether every chapter mixed cleanly.
func (r Report) AllSucceeded() bool {
	return r.TotalFiles > 0 && r.Failed == 0
}

// MixChapters mixes every stitched chapter voice track under projectDir
// against a single shared background bed, writing renders to
// 06_MIX/renders. The voice track for a chapter is read from
// 03_GENERATED/processed when present, falling back to 03_GENERATED/raw
// (the process node is optional; mixing doesn't require it to have run).
// The bed is whichever *.wav under 05_MUSIC/generated was most recently
// modified (normally the compose node's latest output) — the project model has no per-chapter
// bed assignment, so one shared bed is looped under every chapter, same
// as the mixer's own loop-to-length behavior for a single chapter.
func MixChapters(cfg types.MixConfig, projectDir string) (Report, error) {
	voiceDir := filepath.Join(projectDir, "03_GENERATED", "processed")
	if entries, err := filepath.Glob(filepath.Join(voiceDir, "*.wav")); err != nil || len(entries) == 0 {
		voiceDir = filepath.Join(projectDir, "03_GENERATED", "raw")
	}

	voiceFiles, err := chapterFiles(voiceDir)
	if err != nil {
		return Report{}, fmt.Errorf("mix: list voice files: %w", err)
	}
	if len(voiceFiles) == 0 {
		return Report{}, fmt.Errorf("mix: no stitched chapter voice files found in %s", voiceDir)
	}

	musicPath, err := latestBed(filepath.Join(projectDir, "05_MUSIC", "generated"))
	if err != nil {
		return Report{}, fmt.Errorf("mix: list music beds: %w", err)
	}

	outputDir := filepath.Join(projectDir, "06_MIX", "renders")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("mix: create renders dir: %w", err)
	}

	mixer := New(cfg)
	report := Report{TotalFiles: len(voiceFiles)}
	for _, voicePath := range voiceFiles {
		name := filepath.Base(voicePath)
		outputPath := filepath.Join(outputDir, name)

		result := ChapterResult{Chapter: stem(name), Output: outputPath}
		if err := mixer.MixChapter(voicePath, musicPath, outputPath); err != nil {
			result.Error = err.Error()
			report.Failed++
		} else {
			result.OK = true
			report.Mixed++
		}
		report.Results = append(report.Results, result)
	}

	return report, nil
}

// chapterFiles returns the stitched chapter WAVs in dir (excluding
// per-chunk files, the same underscore-in-stem heuristic used throughout
// this pipeline), sorted by name.
func chapterFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		name := stem(filepath.Base(m))
		if !containsUnderscore(name) {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// latestBed returns the most recently modified *.wav file in dir, or ""
// if dir has none — the mixer treats an empty path as no-music.
func latestBed(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return "", err
	}
	latest := ""
	var latestInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return "", err
		}
		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) {
			latest, latestInfo = m, info
		}
	}
	return latest, nil
}

func stem(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func containsUnderscore(s string) bool {
	for _, r := range s {
		if r == '_' {
			return true
		}
	}
	return false
}

// Package ingest implements the Node 1 text importer (§2/§6): copying
// chapter text files into a project's 01_TEXT/chapters directory and
// registering a Chapter entry in project.json for each newly-seen file.
//
// Per-language text classification (Arabic diacritization level,
// dialect detection) is out of scope for this module — language is
// either supplied explicitly by the caller or defaults to the project's
// first configured language, matching the distilled spec's exclusion of
// diacritization/phonetic/language-detection libraries.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/socialawy/audioformation/pkg/types"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeFilename strips path separators and other filesystem-unsafe
// characters from a raw filename, mirroring the original's
// sanitize_filename.
func sanitizeFilename(raw string) (string, error) {
	name := filepath.Base(raw)
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "", fmt.Errorf("ingest: filename %q is empty after sanitization", raw)
	}
	return name, nil
}

// FileResult is one source file's outcome.
type FileResult struct {
	File      string
	ChapterID string
	Status    string // "ingested" or "skipped"
	Reason    string
	Language  string
	Chars     int
}

// Result is the full outcome of one IngestText call.
type Result struct {
	TotalFiles int
	Ingested   int
	Skipped    int
	Details    []FileResult
}

// IngestText copies every *.txt file from sourceDir into
// <projectRoot>/01_TEXT/chapters, registers a new Chapter in cfg for
// each file not already present (matched by chapter id), and returns
// per-file results. cfg is mutated in place; callers persist it via
// project.Store.SaveConfig. An explicit language is assigned to every new
// chapter; when empty, the first of cfg.Languages is used, or "en" if
// cfg.Languages is also empty.
func IngestText(cfg *types.ProjectConfig, projectRoot, sourceDir, language string) (Result, error) {
	chaptersDir := filepath.Join(projectRoot, "01_TEXT", "chapters")
	if err := os.MkdirAll(chaptersDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ingest: create chapters dir: %w", err)
	}

	if _, err := os.Stat(sourceDir); err != nil {
		return Result{}, fmt.Errorf("ingest: source directory not found: %s", sourceDir)
	}

	matches, err := filepath.Glob(filepath.Join(sourceDir, "*.txt"))
	if err != nil {
		return Result{}, fmt.Errorf("ingest: glob source dir: %w", err)
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("ingest: no .txt files found in %s", sourceDir)
	}

	defaultLanguage := language
	if defaultLanguage == "" && len(cfg.Languages) > 0 {
		defaultLanguage = cfg.Languages[0]
	}
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}

	existing := make(map[string]bool, len(cfg.Chapters))
	for _, ch := range cfg.Chapters {
		existing[ch.ID] = true
	}

	result := Result{TotalFiles: len(matches)}
	var newChapters []types.Chapter

	for _, src := range matches {
		safeName, err := sanitizeFilename(filepath.Base(src))
		if err != nil {
			return Result{}, err
		}
		dst := filepath.Join(chaptersDir, safeName)
		if err := copyFile(src, dst); err != nil {
			return Result{}, fmt.Errorf("ingest: copy %s: %w", src, err)
		}

		content, err := os.ReadFile(dst)
		if err != nil {
			return Result{}, fmt.Errorf("ingest: read %s: %w", dst, err)
		}
		trimmed := strings.TrimSpace(string(content))

		chapterID := chapterIDFromFilename(safeName)

		if existing[chapterID] {
			result.Skipped++
			result.Details = append(result.Details, FileResult{
				File:      safeName,
				ChapterID: chapterID,
				Status:    "skipped",
				Reason:    "already exists in project.json",
			})
			continue
		}

		newChapters = append(newChapters, types.Chapter{
			ID:                 chapterID,
			Title:              titleFromChapterID(chapterID),
			Language:           defaultLanguage,
			SourcePath:         filepath.ToSlash(filepath.Join("01_TEXT", "chapters", safeName)),
			DefaultCharacterID: "narrator",
			Mode:               types.ModeSingle,
			Direction: map[string]string{
				"energy":  "normal",
				"pace":    "moderate",
				"emotion": "neutral",
			},
		})

		result.Ingested++
		result.Details = append(result.Details, FileResult{
			File:      safeName,
			ChapterID: chapterID,
			Status:    "ingested",
			Language:  defaultLanguage,
			Chars:     len(trimmed),
		})
	}

	cfg.Chapters = append(cfg.Chapters, newChapters...)

	return result, nil
}

func chapterIDFromFilename(name string) string {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	id = strings.ReplaceAll(id, " ", "_")
	return strings.ToLower(id)
}

func titleFromChapterID(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

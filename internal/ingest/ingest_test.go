package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/socialawy/audioformation/pkg/types"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
}

func TestIngestText_CopiesAndRegistersChapters(t *testing.T) {
	projectRoot := t.TempDir()
	sourceDir := t.TempDir()
	writeSourceFile(t, sourceDir, "ch01.txt", "Once upon a time, in a land far away.")
	writeSourceFile(t, sourceDir, "ch02.txt", "The story continues.")

	cfg := &types.ProjectConfig{}
	result, err := IngestText(cfg, projectRoot, sourceDir, "en")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}

	if result.TotalFiles != 2 || result.Ingested != 2 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(cfg.Chapters) != 2 {
		t.Fatalf("len(cfg.Chapters) = %d, want 2", len(cfg.Chapters))
	}

	copied := filepath.Join(projectRoot, "01_TEXT", "chapters", "ch01.txt")
	if _, err := os.Stat(copied); err != nil {
		t.Errorf("expected file copied to %s: %v", copied, err)
	}

	for _, ch := range cfg.Chapters {
		if ch.Language != "en" {
			t.Errorf("chapter %q language = %q, want en", ch.ID, ch.Language)
		}
		if ch.Mode != types.ModeSingle {
			t.Errorf("chapter %q mode = %q, want single", ch.ID, ch.Mode)
		}
		if ch.DefaultCharacterID != "narrator" {
			t.Errorf("chapter %q default character = %q, want narrator", ch.ID, ch.DefaultCharacterID)
		}
	}
}

func TestIngestText_SkipsAlreadyRegisteredChapter(t *testing.T) {
	projectRoot := t.TempDir()
	sourceDir := t.TempDir()
	writeSourceFile(t, sourceDir, "ch01.txt", "Some content.")

	cfg := &types.ProjectConfig{
		Chapters: []types.Chapter{{ID: "ch01"}},
	}
	result, err := IngestText(cfg, projectRoot, sourceDir, "en")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if result.Ingested != 0 || result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(cfg.Chapters) != 1 {
		t.Fatalf("len(cfg.Chapters) = %d, want 1 (no duplicate)", len(cfg.Chapters))
	}
}

func TestIngestText_MissingSourceDirErrors(t *testing.T) {
	cfg := &types.ProjectConfig{}
	_, err := IngestText(cfg, t.TempDir(), filepath.Join(t.TempDir(), "does-not-exist"), "en")
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}
}

func TestIngestText_NoTxtFilesErrors(t *testing.T) {
	cfg := &types.ProjectConfig{}
	emptyDir := t.TempDir()
	_, err := IngestText(cfg, t.TempDir(), emptyDir, "en")
	if err == nil {
		t.Fatal("expected error for no .txt files")
	}
}

func TestIngestText_DefaultsLanguageFromProjectConfig(t *testing.T) {
	projectRoot := t.TempDir()
	sourceDir := t.TempDir()
	writeSourceFile(t, sourceDir, "ch01.txt", "content")

	cfg := &types.ProjectConfig{Languages: []string{"ar"}}
	_, err := IngestText(cfg, projectRoot, sourceDir, "")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if cfg.Chapters[0].Language != "ar" {
		t.Errorf("Language = %q, want ar (from cfg.Languages)", cfg.Chapters[0].Language)
	}
}

func TestChapterIDFromFilename_NormalizesNameAndCase(t *testing.T) {
	if got := chapterIDFromFilename("Chapter One.txt"); got != "chapter_one" {
		t.Errorf("chapterIDFromFilename() = %q, want chapter_one", got)
	}
}

func TestTitleFromChapterID_CapitalizesWords(t *testing.T) {
	if got := titleFromChapterID("chapter_one"); got != "Chapter One" {
		t.Errorf("titleFromChapterID() = %q, want 'Chapter One'", got)
	}
}

func TestSanitizeFilename_StripsUnsafeChars(t *testing.T) {
	got, err := sanitizeFilename("../../etc/passwd")
	if err != nil {
		t.Fatalf("sanitizeFilename() error = %v", err)
	}
	if got != "passwd" {
		t.Errorf("sanitizeFilename() = %q, want passwd", got)
	}
}

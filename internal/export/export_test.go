package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateFFMetadata_IncludesChaptersAndGlobalTags(t *testing.T) {
	chapters := []chapterMark{
		{Title: "Chapter One", Start: 0, End: 5000},
		{Title: "Chapter Two", Start: 5000, End: 12000},
	}
	meta := map[string]string{"author": "Jane Doe", "year": "2026", "narrator": "Sam Reader"}

	out := generateFFMetadata(chapters, "My Book", meta)

	if !strings.HasPrefix(out, ";FFMETADATA1\n") {
		t.Fatalf("missing ffmetadata header: %q", out[:20])
	}
	for _, want := range []string{
		"title=My Book",
		"artist=Jane Doe",
		"album_artist=Jane Doe",
		"date=2026",
		"composer=Sam Reader",
		"performer=Sam Reader",
		"[CHAPTER]",
		"TIMEBASE=1/1000",
		"START=0",
		"END=5000",
		"title=Chapter One",
		"START=5000",
		"END=12000",
		"title=Chapter Two",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("ffmetadata missing %q\nfull output:\n%s", want, out)
		}
	}
}

func TestGenerateFFMetadata_OmitsEmptyFields(t *testing.T) {
	out := generateFFMetadata(nil, "", nil)
	if strings.Contains(out, "artist=") || strings.Contains(out, "title=") {
		t.Errorf("expected no optional tags when all fields empty, got: %q", out)
	}
}

func TestGenerateManifest_HashesFilesAndExcludesItself(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "book.mp3"), []byte("fake mp3 data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	sub := filepath.Join(dir, "chapters")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "ch01.wav"), []byte("fake wav data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	manifestPath, err := GenerateManifest(dir, "proj1", map[string]string{"author": "Jane"})
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}

	if manifest.ProjectID != "proj1" {
		t.Errorf("ProjectID = %q, want proj1", manifest.ProjectID)
	}
	if manifest.TotalFiles != 2 {
		t.Fatalf("TotalFiles = %d, want 2", manifest.TotalFiles)
	}
	if manifest.Metadata["author"] != "Jane" {
		t.Errorf("Metadata[author] = %q, want Jane", manifest.Metadata["author"])
	}
	for _, f := range manifest.Files {
		if f.Path == "manifest.json" {
			t.Fatal("manifest.json should not list itself")
		}
		if f.SHA256 == "" {
			t.Errorf("file %s has empty sha256", f.Path)
		}
	}
}

func TestGenerateManifest_EmptyDirProducesZeroFiles(t *testing.T) {
	dir := t.TempDir()
	manifestPath, err := GenerateManifest(dir, "proj2", nil)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}
	data, _ := os.ReadFile(manifestPath)
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0", manifest.TotalFiles)
	}
}

func TestCheckNonEmpty_MissingFileErrors(t *testing.T) {
	if err := checkNonEmpty(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCheckNonEmpty_EmptyFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mp3")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := checkNonEmpty(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

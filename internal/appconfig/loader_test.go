package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
storage:
  adapter: "local"
  local:
    base_path: "` + tmpDir + `"
projects_root: "` + tmpDir + `"
worker_pool_size: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Adapter != "local" {
		t.Errorf("Storage.Adapter = %q, want local", cfg.Storage.Adapter)
	}
	if cfg.WorkerPoolSize != 2 {
		t.Errorf("WorkerPoolSize = %d, want 2", cfg.WorkerPoolSize)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want default 'ffmpeg'", cfg.FFmpegPath)
	}
}

func TestLoad_RelativeLocalBasePathRejected(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
storage:
  adapter: "local"
  local:
    base_path: "relative/path"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() expected error for relative base_path, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

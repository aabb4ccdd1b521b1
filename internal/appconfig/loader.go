// Package appconfig loads the process-wide service configuration: storage
// backend selection, ffmpeg/ffprobe paths, and worker pool sizing. This is
// distinct from a project's own project.json, which internal/project owns.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/socialawy/audioformation/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the service configuration file, applying AF_-
// prefixed environment overrides, then validates the result.
func Load(configPath string) (*types.ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := types.DefaultServiceConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the service configuration for internal consistency.
func Validate(cfg *types.ServiceConfig) error {
	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}

	return nil
}

// applyEnvOverrides applies AF_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *types.ServiceConfig) {
	if val := os.Getenv("AF_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("AF_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("AF_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("AF_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("AF_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("AF_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("AF_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}
	if val := os.Getenv("AF_PROJECTS_ROOT"); val != "" {
		cfg.ProjectsRoot = val
	}
	if val := os.Getenv("AF_FFMPEG_PATH"); val != "" {
		cfg.FFmpegPath = val
	}
	if val := os.Getenv("AF_FFPROBE_PATH"); val != "" {
		cfg.FFprobePath = val
	}
	if val := os.Getenv("AF_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
}

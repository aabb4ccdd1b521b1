package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "audioformation",
	Short:         "Audiobook production pipeline: ingest, generate, process, mix, export",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "service.yaml",
		"service configuration file (storage backend, ffmpeg paths, worker pool size)")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/engine"
	"github.com/socialawy/audioformation/internal/generate"
	"github.com/socialawy/audioformation/internal/pipeline"
)

var (
	generateEngine   string
	generateChapters []string
)

var generateCmd = &cobra.Command{
	Use:   "generate <project-id>",
	Short: "Run TTS generation for the project's chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		if err := pipeline.RequireGate(state, "generate"); err != nil {
			return err
		}

		orch := generate.NewOrchestrator(engine.DefaultRegistry(), audioproc.New(cfg.FFmpegPath), store)
		report, err := orch.Generate(ctx, id, generate.Options{
			EngineOverride: generateEngine,
			Chapters:       generateChapters,
		})
		if err != nil {
			return err
		}

		fmt.Printf("generate: %d chapters, %d/%d chunks failed (%.1f%%)\n",
			report.Chapters, report.FailedChunks, report.TotalChunks, report.FailRatePercent)
		for _, d := range report.Details {
			fmt.Printf("  %-20s  %-10s  engine=%-12s  chunks=%d  failed=%d\n",
				d.ChapterID, d.Status, d.EngineUsed, d.TotalChunks, d.FailedChunks)
			if d.Error != "" {
				fmt.Printf("    error: %s\n", d.Error)
			}
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateEngine, "engine", "", "force a single engine for every chapter, overriding per-character config")
	generateCmd.Flags().StringSliceVar(&generateChapters, "chapters", nil, "restrict generation to these chapter ids (default: all)")
	rootCmd.AddCommand(generateCmd)
}

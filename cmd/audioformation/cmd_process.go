package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/internal/process"
	"github.com/socialawy/audioformation/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process <project-id>",
	Short: "Trim silence and loudness-normalize every stitched chapter WAV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svcCfg, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		cfg, err := store.LoadConfig(ctx, id)
		if err != nil {
			return err
		}
		projectDir, err := store.LocalPath(id)
		if err != nil {
			return err
		}

		proc := audioproc.New(svcCfg.FFmpegPath)
		report, err := process.ProcessChapters(ctx, proc, projectDir, cfg.Mix)
		if err != nil {
			return err
		}

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		status := types.StatusComplete
		if !report.AllSucceeded() {
			status = types.StatusPartial
		}
		if err := pipeline.MarkNode(state, "process", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("process: %d/%d chapters normalized\n", report.Processed, report.TotalFiles)
		for _, r := range report.Results {
			if !r.OK {
				fmt.Printf("  %-20s  failed: %s\n", r.Chapter, r.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

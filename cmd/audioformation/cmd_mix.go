package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/mix"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var mixCmd = &cobra.Command{
	Use:   "mix <project-id>",
	Short: "Mix every stitched chapter voice track against the composed bed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
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

		report, err := mix.MixChapters(cfg.Mix, projectDir)
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
		if err := pipeline.MarkNode(state, "mix", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("mix: %d/%d chapters mixed\n", report.Mixed, report.TotalFiles)
		for _, r := range report.Results {
			if !r.OK {
				fmt.Printf("  %-20s  failed: %s\n", r.Chapter, r.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mixCmd)
}

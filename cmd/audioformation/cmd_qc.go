package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var qcCmd = &cobra.Command{
	Use:   "qc <project-id>",
	Short: "Aggregate per-chunk QC results from the last generation run",
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
		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}

		genNode := state.Nodes["generate"]
		totalChunks, failedChunks := 0, 0
		for chapterID, ch := range genNode.Chapters {
			totalChunks += ch.Chunks
			failedChunks += ch.FailedChunks
			fmt.Printf("  %-20s  chunks=%-4d  failed=%-4d  engine=%s\n", chapterID, ch.Chunks, ch.FailedChunks, ch.EngineUsed)
		}

		failRate := 0.0
		if totalChunks > 0 {
			failRate = float64(failedChunks) / float64(totalChunks) * 100
		}

		status := types.StatusComplete
		if failRate > cfg.Generation.FailThresholdPercent {
			status = types.StatusFailed
		}
		if err := pipeline.MarkNode(state, "qc_scan", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("qc: %d/%d chunks failed (%.1f%%), threshold %.1f%% -> %s\n",
			failedChunks, totalChunks, failRate, cfg.Generation.FailThresholdPercent, status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qcCmd)
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/audioproc"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/internal/pipelineerr"
	"github.com/socialawy/audioformation/internal/qcfinal"
	"github.com/socialawy/audioformation/pkg/types"
)

var qcFinalCmd = &cobra.Command{
	Use:   "qc-final <project-id>",
	Short: "Run the qc_final hard gate: loudness, true peak, and silence-gap checks on the mixed renders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svcCfg, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		if err := pipeline.RequireGate(state, "qc_final"); err != nil {
			return err
		}

		cfg, err := store.LoadConfig(ctx, id)
		if err != nil {
			return err
		}
		projectDir, err := store.LocalPath(id)
		if err != nil {
			return err
		}

		proc := audioproc.New(svcCfg.FFmpegPath)
		renderDir := filepath.Join(projectDir, "06_MIX", "renders")
		report, err := qcfinal.ScanFinalMix(ctx, proc, renderDir, id, cfg.Mix, cfg.QCFinal.SilenceThresholdDBFS)
		if err != nil {
			return err
		}

		for _, r := range report.Results {
			fmt.Printf("  %-30s  %s\n", r.File, r.Status)
		}
		fmt.Printf("qc-final: %d/%d files passed\n", report.PassedFiles, report.TotalFiles)

		status := types.StatusComplete
		if !report.Passed() {
			status = types.StatusFailed
		}
		if err := pipeline.MarkNode(state, "qc_final", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		if !report.Passed() {
			return &pipelineerr.GateError{Gate: "qc_final"}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qcFinalCmd)
}

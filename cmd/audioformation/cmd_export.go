package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/export"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var (
	exportFormat  string
	exportBitrate int
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export the mixed renders to mp3, wav, or m4b",
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
		if err := pipeline.RequireGate(state, "export"); err != nil {
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

		exp := export.New(svcCfg.FFmpegPath)
		bookTitle := cfg.ID
		report, err := export.RunExport(ctx, exp, projectDir, id, cfg.Export, cfg.Chapters, bookTitle, exportFormat, exportBitrate)
		if err != nil {
			return err
		}

		status := types.StatusComplete
		if !report.AllSucceeded() {
			status = types.StatusPartial
		}
		if err := pipeline.MarkNode(state, "export", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("export: %d/%d chapters exported as %s\n", report.Exported, report.TotalFiles, report.Format)
		fmt.Printf("manifest: %s\n", report.Manifest)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "mp3", "output format: mp3, wav, or m4b")
	exportCmd.Flags().IntVar(&exportBitrate, "bitrate", 0, "mp3 bitrate override in kbps (0 = use project config)")
	rootCmd.AddCommand(exportCmd)
}

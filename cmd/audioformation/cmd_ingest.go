package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/ingest"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var (
	ingestSourceDir string
	ingestLanguage  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <project-id>",
	Short: "Import chapter text files into the project and register chapters",
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
		projectRoot, err := store.LocalPath(id)
		if err != nil {
			return err
		}

		sourceDir := ingestSourceDir
		if sourceDir == "" {
			sourceDir = projectRoot
		}

		result, err := ingest.IngestText(cfg, projectRoot, sourceDir, ingestLanguage)
		if err != nil {
			return err
		}
		if err := store.SaveConfig(ctx, id, cfg); err != nil {
			return err
		}

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		if err := pipeline.MarkNode(state, "ingest", types.StatusComplete); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("ingest: %d ingested, %d skipped (of %d files)\n", result.Ingested, result.Skipped, result.TotalFiles)
		for _, d := range result.Details {
			fmt.Printf("  %-30s  %-8s  %s\n", d.File, d.Status, d.Reason)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceDir, "source", "", "directory of .txt chapter files (defaults to the project root)")
	ingestCmd.Flags().StringVar(&ingestLanguage, "language", "", "language code override (defaults to the project's first configured language)")
	rootCmd.AddCommand(ingestCmd)
}

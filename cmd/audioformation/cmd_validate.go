package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/internal/pipelineerr"
	"github.com/socialawy/audioformation/internal/validate"
	"github.com/socialawy/audioformation/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <project-id>",
	Short: "Run the validate hard gate: config sanity, source text, ffmpeg",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		projectCfg, err := store.LoadConfig(ctx, id)
		if err != nil {
			return err
		}
		projectRoot, err := store.LocalPath(id)
		if err != nil {
			return err
		}

		result := validate.ValidateProject(projectCfg, projectRoot, cfg.FFmpegPath, validate.LookPathFFmpeg)

		for _, w := range result.Warnings {
			fmt.Println("warning:", w)
		}
		for _, f := range result.Failures {
			fmt.Println("failure:", f)
		}

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		status := types.StatusComplete
		if !result.OK() {
			status = types.StatusFailed
		}
		if err := pipeline.MarkNode(state, "validate", status); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		if !result.OK() {
			return &pipelineerr.GateError{Gate: "validate"}
		}
		fmt.Println("validate: passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

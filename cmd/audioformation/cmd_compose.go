package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/compose"
	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var (
	composePreset      string
	composeDurationSec float64
	composeSeed        uint64
)

var composePresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List available mood preset names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range compose.ListPresets() {
			fmt.Println(name)
		}
		return nil
	},
}

var composeCmd = &cobra.Command{
	Use:   "compose <project-id>",
	Short: "Synthesize an ambient background bed for the mix node to loop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		projectDir, err := store.LocalPath(id)
		if err != nil {
			return err
		}

		outputPath, err := compose.ComposeBed(projectDir, composePreset, composeDurationSec, composeSeed)
		if err != nil {
			return err
		}

		state, err := store.LoadState(ctx, id)
		if err != nil {
			return err
		}
		if err := pipeline.MarkNode(state, "compose", types.StatusComplete); err != nil {
			return err
		}
		if err := store.SaveState(ctx, id, state); err != nil {
			return err
		}

		fmt.Printf("compose: wrote %s\n", outputPath)
		return nil
	},
}

func init() {
	composeCmd.Flags().StringVar(&composePreset, "preset", "contemplative", "mood preset name (see `compose presets` for the list)")
	composeCmd.Flags().Float64Var(&composeDurationSec, "duration", 60, "bed duration in seconds")
	composeCmd.Flags().Uint64Var(&composeSeed, "seed", 1, "deterministic synthesis seed")
	composeCmd.AddCommand(composePresetsCmd)
	rootCmd.AddCommand(composeCmd)
}

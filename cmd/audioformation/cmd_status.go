package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/pipeline"
	"github.com/socialawy/audioformation/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show each pipeline node's status and the resume point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		state, err := store.LoadState(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, node := range types.PipelineNodes {
			status, err := pipeline.GetNodeStatus(state, node)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s  %s\n", node, status)
		}
		fmt.Printf("\nResume point: %s\n", pipeline.GetResumePoint(state))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

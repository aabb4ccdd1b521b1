package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialawy/audioformation/internal/pipeline"
)

var (
	runFrom string
	runTo   string
)

// nodeRunners maps a pipeline node name to the cobra command that already
// implements it. `run` dispatches into the same RunE a direct invocation
// of that subcommand would use, rather than re-implementing each node's
// logic here.
var nodeRunners = map[string]*cobra.Command{
	"ingest":   ingestCmd,
	"validate": validateCmd,
	"generate": generateCmd,
	"qc_scan":  qcCmd,
	"process":  processCmd,
	"compose":  composeCmd,
	"mix":      mixCmd,
	"qc_final": qcFinalCmd,
	"export":   exportCmd,
}

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Run the pipeline from a node through to the end (default: resume point)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id := args[0]

		from := runFrom
		if from == "" {
			state, err := store.LoadState(ctx, id)
			if err != nil {
				return err
			}
			from = pipeline.GetResumePoint(state)
		}

		nodes, err := pipeline.NodesInRange(from, runTo)
		if err != nil {
			return err
		}

		for _, node := range nodes {
			runner, ok := nodeRunners[node]
			if !ok {
				// "bootstrap" has no standalone node runner: project
				// creation is a one-time `new` invocation, not a step a
				// `run` sweep repeats.
				continue
			}
			fmt.Printf("=== %s ===\n", node)
			if err := runner.RunE(cmd, []string{id}); err != nil {
				return fmt.Errorf("run: node %q: %w", node, err)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFrom, "from", "", "first node to run (default: the project's resume point)")
	runCmd.Flags().StringVar(&runTo, "to", "", "last node to run (default: the end of the pipeline)")
	rootCmd.AddCommand(runCmd)
}

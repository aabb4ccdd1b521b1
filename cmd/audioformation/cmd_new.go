package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <project-id>",
	Short: "Bootstrap a new project directory structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		id, err := store.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created project %q.\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}

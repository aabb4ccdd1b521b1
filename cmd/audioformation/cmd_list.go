package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every project under the projects root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-24s  node=%-10s  chapters=%-4d  languages=%v\n",
				s.ID, s.CurrentNode, s.ChapterCount, s.Languages)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

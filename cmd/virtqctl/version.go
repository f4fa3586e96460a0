package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print virtqctl version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("virtqctl version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

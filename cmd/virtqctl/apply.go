package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtq/bwf2q/internal/engine"
	"github.com/virtq/bwf2q/pkg/config"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Validate and load a scheduling hierarchy definition",
	Long: `Apply parses a SchedulerHierarchy YAML resource, builds the
engine it describes, and prints a flat summary: the hierarchy name, its
priority classes and max budget, the names of its leaf queues and the
busy-queue count. Groups are not listed.

Examples:
  # Validate a hierarchy file and print a summary
  virtqctl apply -f hierarchy.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML hierarchy file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	res, err := config.Load(filename)
	if err != nil {
		return fmt.Errorf("failed to load hierarchy: %w", err)
	}

	eng, leaves, err := config.Build(res, engine.Params{})
	if err != nil {
		return fmt.Errorf("failed to build hierarchy: %w", err)
	}

	fmt.Printf("✓ Hierarchy applied: %s\n", res.Metadata.Name)
	fmt.Printf("  Priority classes: %d\n", res.Spec.NumClasses)
	fmt.Printf("  Max budget:       %d\n", res.Spec.MaxBudget)
	fmt.Printf("  Leaf queues:      %d\n", len(leaves))
	for name := range leaves {
		fmt.Printf("    - %s\n", name)
	}
	fmt.Printf("  Busy queues:      %d\n", eng.BusyQueues())

	return nil
}

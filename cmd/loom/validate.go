package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/loom/internal/compiler"
)

var validateCmd = &cobra.Command{
	Use:   "validate <machine.yaml>",
	Short: "Check a machine definition for consistency",
	Long:  `Parses a machine file and verifies its structure: unique states, a single terminal state, unique transition discriminators, and resolvable endpoints.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		parser := compiler.NewParser()
		machine, err := parser.ParseFile(args[0])
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Machine %q is valid (%d states, %d transitions)\n", machine.ID, len(machine.States), len(machine.Transitions))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

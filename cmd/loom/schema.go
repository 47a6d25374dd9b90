package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/compiler"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <machine.yaml>",
	Short: "Print a machine's entry and exit schemas",
	Long:  `Computes the JSON schema union over the machine's start transitions (input) and terminal transitions (output) without running anything.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		markdown, _ := cmd.Flags().GetBool("markdown")
		if err := runSchema(args[0], markdown); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().Bool("markdown", false, "Render the schemas as a markdown document")
}

func runSchema(path string, markdown bool) error {
	machine, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return err
	}

	input, output := loom.IOSchemas(nil, machine)
	in, err := json.MarshalIndent(input.Document(), "", "  ")
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(output.Document(), "", "  ")
	if err != nil {
		return err
	}

	if !markdown {
		doc := map[string]json.RawMessage{"input": in, "output": out}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	body := fmt.Sprintf("# %s\n\n## Input\n\n```json\n%s\n```\n\n## Output\n\n```json\n%s\n```\n",
		machine.ID, in, out)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(body)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithColorProfile(termenv.ColorProfile()),
	)
	if err != nil {
		return err
	}
	rendered, err := renderer.Render(body)
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

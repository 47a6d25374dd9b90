package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/compiler"
	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/actions/fanout"
	"github.com/aretw0/loom/pkg/actions/llm"
	"github.com/aretw0/loom/pkg/actions/submachine"
	"github.com/aretw0/loom/pkg/actions/tool"
	"github.com/aretw0/loom/pkg/adapters/langchain"
	"github.com/aretw0/loom/pkg/adapters/mcp"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <machine.yaml>",
	Short: "Run a machine to completion",
	Long:  `Starts the machine, submits the given event, and prints the terminal event with its trail as JSON.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMachine(cmd, args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("event", "e", "", "Initial event as JSON, including its \"id\" pair")
	runCmd.Flags().String("provider", "openai", "Default LLM provider")
	runCmd.Flags().String("model", "gpt-4o-mini", "Default LLM model")
	runCmd.Flags().Int("max-attempts", domain.DefaultMaxAttempts, "Retry budget per step (0 = unbounded)")
	runCmd.Flags().Duration("timeout", 5*time.Minute, "Overall run timeout")
	runCmd.Flags().String("bridge", "", "Command spawning an MCP stdio server for tool states")
}

func runMachine(cmd *cobra.Command, path string) error {
	raw, _ := cmd.Flags().GetString("event")
	if raw == "" {
		return fmt.Errorf("--event is required")
	}
	var event domain.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return fmt.Errorf("parsing event: %w", err)
	}

	machine, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	attempts, _ := cmd.Flags().GetInt("max-attempts")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	bridge, _ := cmd.Flags().GetString("bridge")

	ctx := buildContext(logger, provider, model, bridge, memory.NewLoader(machine))
	ctx.Retry.MaxAttempts = attempts

	res, err := loom.Run(ctx, machine, event, timeout, loom.WithLogger(logger))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"event": res.Event, "trail": res.Trail})
}

// buildContext wires the default action set against a loader and the
// langchaingo client. The bridge command is optional; without it the "tool"
// action is not registered.
func buildContext(logger *slog.Logger, provider, model, bridge string, loader domain.MachineLoader) *domain.Context {
	registry := action.NewRegistry()
	registry.Register(llm.Name, llm.New())
	registry.Register(fanout.Name, fanout.New())
	registry.Register(submachine.Name, submachine.New())
	if bridge != "" {
		registry.Register(tool.Name, tool.New(mcp.Dialer(bridge, os.Environ())))
	}

	ctx := domain.NewContext()
	ctx.Actions = registry
	ctx.Defaults = domain.Defaults{Provider: provider, Model: model}
	ctx.Loader = loader
	ctx.Client = langchain.New()
	ctx.Logger = logger
	return ctx
}

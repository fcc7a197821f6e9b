// Command rce is an illustrative demo CLI that drives the Agent Runner
// against a scripted mock provider, in the style of the teacher's
// cmd/nexus/main.go (logger setup, buildRootCmd separated for testability).
// It is not the deliverable: the spec's CLI-surface Non-goal scopes out a
// real production entrypoint, so this exists to exercise the library from
// the outside rather than to ship.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/basilisk-ai/rce/internal/agentrunner"
	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/internal/config"
	"github.com/basilisk-ai/rce/internal/docsearch"
	"github.com/basilisk-ai/rce/internal/llm/mock"
	"github.com/basilisk-ai/rce/internal/obs"
	"github.com/basilisk-ai/rce/internal/orchestrator"
	"github.com/basilisk-ai/rce/internal/sandbox"
	"github.com/basilisk-ai/rce/internal/session"
	"github.com/basilisk-ai/rce/internal/toolkit"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

var configPath string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "rce",
		Short:        "Recursive Completion Engine demo CLI",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}

func buildRunCmd() *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent against a scripted mock provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), task)
		},
	}
	cmd.Flags().StringVar(&task, "task", "What is 1+2+...+100?", "task prompt to give the agent")
	return cmd
}

func runDemo(ctx context.Context, task string) error {
	cfg := config.FromEnv(config.WithDefaults())
	if configPath != "" {
		loaded, err := config.LoadFile(configPath, cfg)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	sessions := session.NewManager(cfg.Session.Cap, cfg.Session.TTL)
	reg := toolkit.New()
	if err := reg.Register(sandbox.NewExecutor(sessions)); err != nil {
		return fmt.Errorf("register sandbox tool: %w", err)
	}

	provider := mock.New(
		mock.Turn{ToolCalls: []rcetypes.ToolCall{{ID: "1", Name: "execute_code", Arguments: mustMarshal(map[string]string{
			"code": "result = sum(range(1,101))", "session_id": "demo",
		})}}},
		mock.Turn{Text: "computed the sum"},
		mock.Turn{ToolCalls: []rcetypes.ToolCall{{ID: "2", Name: "FINAL_VAR", Arguments: mustMarshal(map[string]string{
			"variable_name": "result",
		})}}},
		mock.Turn{Text: "done"},
	)

	orch := orchestrator.New(provider, reg, nil).WithTracer(obs.NewTracer("rce-demo"))
	runner := agentrunner.New(orch, sessions, agentrunner.Config{
		MaxIterations:      cfg.Agent.MaxIterations,
		TokenBudget:        cfg.Agent.TokenBudget,
		CostLimit:          cfg.Agent.CostLimit,
		SubCallsEnabled:    true,
		MaxSubCallsPerTurn: 5,
		BudgetInheritance:  budget.DefaultInheritanceFactor,
		MaxCostPerSession:  cfg.Agent.CostLimit,
	}, docsearch.New(docsearch.Doc{Title: "intro", Body: "RCE runs a recursive completion loop over tool calls."}))

	result := runner.Run(ctx, task, "", "demo")

	slog.Info("agent run finished",
		"answer", result.Answer,
		"terminal_type", result.TerminalType,
		"iterations", result.Iterations,
		"forced_termination", result.ForcedTermination,
	)
	fmt.Println(result.Answer)
	return nil
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

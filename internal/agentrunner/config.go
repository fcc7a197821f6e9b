// Package agentrunner implements the Agent Runner: an outer iteration loop
// on top of the Orchestrator, with terminal-tool protocol and silently
// clamped guardrails (spec §4.8). Grounded on the teacher's
// internal/agent/loop.go outer Run method (the iteration counter,
// cancellation check, and prompt-building steps it performs around each
// AgenticLoop turn) generalized from "chat turn" to "recursive completion
// turn".
package agentrunner

import "github.com/basilisk-ai/rce/internal/budget"

// Config is the caller-supplied Agent Runner configuration, clamped at
// construction per spec §4.8.
type Config struct {
	MaxIterations  int
	MaxDepth       int
	TokenBudget    int
	CostLimit      float64
	TimeoutSeconds int
	ToolBudget     int

	AutoContext   bool
	ContextBudget int
	TrajectoryLog bool

	ParallelTools bool
	MaxParallel   int
	Model         string

	// SubCallsEnabled registers sub_complete/batch_complete as extra tools
	// (spec §4.7); the rest of this group only matters when it is true.
	SubCallsEnabled    bool
	MaxSubCallsPerTurn int
	BudgetInheritance  float64
	MaxCostPerSession  float64
}

const (
	hardMaxIterations     = 50
	hardMaxDepth          = 5
	hardCostLimit         = 10.00
	hardTimeoutSeconds    = 600
	hardMaxSubCallsPerTurn = 20
)

// clamp applies the hard ceilings spec §4.8 requires, silently, and fills in
// reasonable defaults for zero-valued fields.
func clamp(cfg Config) Config {
	if cfg.MaxIterations <= 0 || cfg.MaxIterations > hardMaxIterations {
		cfg.MaxIterations = hardMaxIterations
	}
	if cfg.MaxDepth <= 0 || cfg.MaxDepth > hardMaxDepth {
		cfg.MaxDepth = hardMaxDepth
	}
	if cfg.CostLimit <= 0 || cfg.CostLimit > hardCostLimit {
		cfg.CostLimit = hardCostLimit
	}
	if cfg.TimeoutSeconds <= 0 || cfg.TimeoutSeconds > hardTimeoutSeconds {
		cfg.TimeoutSeconds = hardTimeoutSeconds
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.SubCallsEnabled {
		if cfg.MaxSubCallsPerTurn <= 0 {
			cfg.MaxSubCallsPerTurn = 5
		} else if cfg.MaxSubCallsPerTurn > hardMaxSubCallsPerTurn {
			cfg.MaxSubCallsPerTurn = hardMaxSubCallsPerTurn
		}
		if cfg.BudgetInheritance <= 0 || cfg.BudgetInheritance > 1 {
			cfg.BudgetInheritance = budget.DefaultInheritanceFactor
		}
		if cfg.MaxCostPerSession <= 0 || cfg.MaxCostPerSession > cfg.CostLimit {
			cfg.MaxCostPerSession = cfg.CostLimit
		}
	}
	return cfg
}

package agentrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/internal/orchestrator"
	"github.com/basilisk-ai/rce/internal/session"
	"github.com/basilisk-ai/rce/internal/trajectory"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Result is the outer AgentResult spec §4.8's per-iteration algorithm
// returns.
type Result struct {
	Answer            string
	TerminalType      TerminalType
	Iterations        int
	ForcedTermination bool
	Cancelled         bool

	TotalTokens    int
	TotalToolCalls int
	TotalCost      float64
	Events         []trajectory.Event
}

// Runner drives repeated Orchestrator.Complete calls until a terminal tool
// fires or a guardrail forces termination.
type Runner struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	cfg      Config

	contextTool rcetypes.Tool // optional documentation-retrieval tool for auto_context

	cancelled bool
}

// New builds a Runner. contextTool may be nil; when set and cfg.AutoContext
// is true, it is invoked once on the first iteration (spec §4.8 step 5).
func New(orch *orchestrator.Orchestrator, sessions *session.Manager, cfg Config, contextTool rcetypes.Tool) *Runner {
	return &Runner{orch: orch, sessions: sessions, cfg: clamp(cfg), contextTool: contextTool}
}

// Cancel sets the cooperative cancellation flag checked at the start of
// every iteration (spec §4.8's cancellation step). In-flight Orchestrator
// work is not interrupted; it is allowed to finish.
func (r *Runner) Cancel() { r.cancelled = true }

// Run drives the agent loop for task, using sessionID as the interpreter
// session any sandbox tool calls and FINAL_VAR read/write against.
func (r *Runner) Run(ctx context.Context, task, system, sessionID string) Result {
	state := &AgentState{}

	var subState *orchestrator.SessionSubState
	if r.cfg.SubCallsEnabled {
		subState = orchestrator.NewSessionSubState()
	}

	totalTokens, totalToolCalls := 0, 0
	totalCost := 0.0
	var allEvents []trajectory.Event
	var lastResponse string

	for iteration := 1; iteration <= r.cfg.MaxIterations; iteration++ {
		state.Iteration = iteration

		if r.cancelled || ctx.Err() != nil {
			return Result{
				Answer: lastResponse, TerminalType: TerminalForced, Iterations: iteration - 1,
				Cancelled: true, TotalTokens: totalTokens, TotalToolCalls: totalToolCalls,
				TotalCost: totalCost, Events: allEvents,
			}
		}
		if totalCost >= r.cfg.CostLimit || (r.cfg.TokenBudget > 0 && totalTokens >= r.cfg.TokenBudget) {
			return Result{
				Answer: lastResponse, TerminalType: TerminalForced, Iterations: iteration - 1,
				ForcedTermination: true, TotalTokens: totalTokens, TotalToolCalls: totalToolCalls,
				TotalCost: totalCost, Events: allEvents,
			}
		}

		finalIteration := iteration == r.cfg.MaxIterations
		remainingTokens := r.cfg.TokenBudget - totalTokens
		if r.cfg.TokenBudget <= 0 {
			remainingTokens = 1 << 30
		}
		perIterationTokens := 2 * r.cfg.TokenBudget / r.cfg.MaxIterations
		if r.cfg.TokenBudget <= 0 {
			perIterationTokens = 0
		} else if perIterationTokens > remainingTokens {
			perIterationTokens = remainingTokens
		}

		iterSystem := system
		if iteration == 1 && r.cfg.AutoContext && r.contextTool != nil {
			if retrieved := r.retrieveContext(ctx, task); retrieved != "" {
				iterSystem = retrieved + "\n\n" + iterSystem
			}
		}

		prompt := buildIterationPrompt(task, iteration, r.cfg.MaxIterations, state.PreviousActionSummaries, remainingTokens, finalIteration)

		opts := orchestrator.Options{
			MaxDepth:       r.cfg.MaxDepth,
			TokenBudget:    perIterationTokens,
			CostBudget:     r.cfg.CostLimit - totalCost,
			ToolBudget:     r.cfg.ToolBudget,
			TimeoutSeconds: r.cfg.TimeoutSeconds,
			ParallelTools:  r.cfg.ParallelTools,
			MaxParallel:    r.cfg.MaxParallel,
			Model:          r.cfg.Model,
		}

		extras := map[string]rcetypes.Tool{
			"FINAL":     newFinalTool(state),
			"FINAL_VAR": newFinalVarTool(state, r.sessions, sessionID),
		}

		if subState != nil {
			subState.ResetTurn()

			deadline := time.Time{}
			if r.cfg.TimeoutSeconds > 0 {
				deadline = time.Now().Add(time.Duration(r.cfg.TimeoutSeconds) * time.Second)
			}
			ledger := budget.New(budget.Limits{
				MaxDepth:  r.cfg.MaxDepth,
				Tokens:    perIterationTokens,
				Cost:      r.cfg.CostLimit - totalCost,
				ToolCalls: r.cfg.ToolBudget,
				Deadline:  deadline,
			})
			opts.Ledger = ledger

			// baseOpts is captured with no extras of its own (empty, distinct
			// map) before FINAL/FINAL_VAR are added below, so a sub-completion
			// never inherits the outer agent loop's terminal-tool protocol.
			baseOpts := opts
			baseOpts.ExtraTools = map[string]rcetypes.Tool{}

			policy := orchestrator.SubCompletionPolicy{
				MaxPerTurn:        r.cfg.MaxSubCallsPerTurn,
				MaxCostPerSession: r.cfg.MaxCostPerSession,
				InheritanceFactor: r.cfg.BudgetInheritance,
				ContextTool:       r.contextTool,
			}
			sub := orchestrator.NewSubCompleteTool(r.orch, ledger, policy, subState, baseOpts)
			extras["sub_complete"] = sub
			extras["batch_complete"] = orchestrator.NewBatchCompleteTool(sub)
		}

		opts.ExtraTools = extras

		turn := r.orch.Complete(ctx, prompt, iterSystem, opts)

		totalTokens += turn.TotalTokens
		totalToolCalls += turn.TotalToolCalls
		totalCost += turn.TotalCost
		allEvents = append(allEvents, turn.Events...)
		lastResponse = turn.Response

		state.pushSummary(summarizeIteration(iteration, turn))

		if state.IsTerminal {
			return Result{
				Answer: state.TerminalValue, TerminalType: state.TerminalType, Iterations: iteration,
				TotalTokens: totalTokens, TotalToolCalls: totalToolCalls, TotalCost: totalCost, Events: allEvents,
			}
		}

		if turn.Violation != nil {
			return Result{
				Answer: lastResponse, TerminalType: TerminalForced, Iterations: iteration,
				ForcedTermination: true, TotalTokens: totalTokens, TotalToolCalls: totalToolCalls,
				TotalCost: totalCost, Events: allEvents,
			}
		}
	}

	return Result{
		Answer: lastResponse, TerminalType: TerminalForced, Iterations: r.cfg.MaxIterations,
		ForcedTermination: true, TotalTokens: totalTokens, TotalToolCalls: totalToolCalls,
		TotalCost: totalCost, Events: allEvents,
	}
}

func (r *Runner) retrieveContext(ctx context.Context, task string) string {
	args, err := json.Marshal(map[string]string{"query": task})
	if err != nil {
		return ""
	}
	result, err := r.contextTool.Execute(ctx, args)
	if err != nil || result == nil || result.IsError {
		return ""
	}
	return result.Content
}

// buildIterationPrompt assembles the per-iteration prompt contract spec
// §4.8 describes: task, "iteration N/M", summaries of previous actions,
// remaining token budget, and (on the final iteration only) a termination
// warning.
func buildIterationPrompt(task string, iteration, maxIterations int, summaries []string, remainingTokens int, finalIteration bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task)
	fmt.Fprintf(&b, "Iteration %d/%d\n", iteration, maxIterations)
	if len(summaries) > 0 {
		b.WriteString("Previous actions:\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	fmt.Fprintf(&b, "Remaining token budget: %d\n", remainingTokens)
	if finalIteration {
		b.WriteString("This is the final permitted iteration. You must call FINAL or FINAL_VAR now.\n")
	}
	return b.String()
}

// summarizeIteration condenses one iteration's tool-call sequence into a
// short previous_action summary, bounding context growth (spec §4.8).
func summarizeIteration(iteration int, turn orchestrator.Result) string {
	if turn.TotalToolCalls == 0 {
		return fmt.Sprintf("iteration %d: responded with no tool calls", iteration)
	}
	names := make([]string, 0, turn.TotalToolCalls)
	for _, e := range turn.Events {
		for _, c := range e.ToolCalls {
			names = append(names, c.Name)
		}
	}
	return fmt.Sprintf("iteration %d: called %s", iteration, strings.Join(names, ", "))
}

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// SubCompletionPolicy carries the guardrails spec §4.7 requires be enforced
// by the outer Orchestrator, not the LLM: a per-turn cap on sub-calls, a
// session-level accumulated cost cap, and the inheritance factor used to
// derive a child budget.
type SubCompletionPolicy struct {
	MaxPerTurn         int
	MaxCostPerSession  float64
	InheritanceFactor  float64
	ContextTool        rcetypes.Tool // optional documentation-retrieval tool
}

// SessionSubState is the mutable, shared-across-calls-in-one-top-level-run
// state a SubCompleteTool and BatchCompleteTool need: the accumulated cost
// spent by sub-calls so far, and how many sub-calls have been issued this
// turn. Grounded on the teacher's subagent.Manager's atomic activeCount
// guard (internal/tools/subagent/spawn.go). Exported so the Agent Runner can
// hold one instance across an entire top-level run — it outlives a single
// Complete call, since the per-turn counter resets each iteration but the
// cost cap accumulates across the whole run.
type SessionSubState struct {
	mu            sync.Mutex
	spentThisSess float64
	callsThisTurn int64
}

func (s *SessionSubState) beginCall(maxPerTurn int) bool {
	if maxPerTurn <= 0 {
		maxPerTurn = 5
	}
	n := atomic.AddInt64(&s.callsThisTurn, 1)
	return n <= int64(maxPerTurn)
}

// ResetTurn clears the per-turn sub-call counter. The Agent Runner calls
// this at the start of every iteration, since the per-turn cap is scoped to
// one Orchestrator.Complete call, not the whole run.
func (s *SessionSubState) ResetTurn() {
	atomic.StoreInt64(&s.callsThisTurn, 0)
}

func (s *SessionSubState) recordSpend(cost float64) {
	s.mu.Lock()
	s.spentThisSess += cost
	s.mu.Unlock()
}

func (s *SessionSubState) exceedsCostCap(cap float64) bool {
	if cap <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spentThisSess >= cap
}

// SubCompleteTool implements sub_complete (spec §4.7). It is constructed
// per top-level completion (never global) and registered as a per-call
// extra by the Agent Runner / Orchestrator whenever sub_calls_enabled.
type SubCompleteTool struct {
	orch   *Orchestrator
	ledger *budget.Ledger
	// ledgerMu guards DeriveChild/ChargeBack against t.ledger: batch_complete
	// fans out concurrent Execute calls sharing the same parent ledger, which
	// Ledger itself assumes is single-goroutine owned.
	ledgerMu sync.Mutex
	policy   SubCompletionPolicy
	state    *SessionSubState
	// baseOpts carries the parent call's ExtraTools etc. so recursive
	// sub-completions see the same tool surface. Execute rebuilds the
	// dispatcher extras map fresh on every call rather than reusing
	// baseOpts.ExtraTools verbatim, so a nested sub_complete always binds
	// to the just-derived child ledger instead of staying pinned to the
	// top-level one.
	baseOpts Options
}

// NewSubCompleteTool wires a SubCompleteTool for one top-level completion.
func NewSubCompleteTool(orch *Orchestrator, ledger *budget.Ledger, policy SubCompletionPolicy, state *SessionSubState, baseOpts Options) *SubCompleteTool {
	return &SubCompleteTool{orch: orch, ledger: ledger, policy: policy, state: state, baseOpts: baseOpts}
}

// NewSessionSubState builds an empty SessionSubState for a new top-level run.
func NewSessionSubState() *SessionSubState { return &SessionSubState{} }

func (t *SubCompleteTool) Name() string { return "sub_complete" }
func (t *SubCompleteTool) Description() string {
	return "Spawns a sub-completion with a derived budget to answer a focused sub-query."
}

func (t *SubCompleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"max_tokens": {"type": "integer"},
			"system": {"type": "string"},
			"context_query": {"type": "string"}
		},
		"required": ["query"]
	}`)
}

type subCompleteArgs struct {
	Query        string `json:"query"`
	MaxTokens    int    `json:"max_tokens"`
	System       string `json:"system"`
	ContextQuery string `json:"context_query"`
}

const maxRecursionSentinel = "Maximum recursion depth reached; summarize with available context"

func (t *SubCompleteTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	var parsed subCompleteArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: "sub_complete: invalid arguments: " + err.Error()}, nil
	}

	if !t.state.beginCall(t.policy.MaxPerTurn) {
		return &rcetypes.ToolResult{IsError: true, Content: fmt.Sprintf("sub_complete: per-turn cap of %d sub-calls exceeded", t.policy.MaxPerTurn)}, nil
	}
	if t.state.exceedsCostCap(t.policy.MaxCostPerSession) {
		return &rcetypes.ToolResult{IsError: true, Content: "sub_complete: session cost cap exceeded"}, nil
	}

	t.ledgerMu.Lock()
	child := t.ledger.DeriveChild(parsed.MaxTokens, t.policy.InheritanceFactor)
	t.ledgerMu.Unlock()
	if v := child.Check(time.Now()); v != nil && v.Kind == budget.DepthExceeded {
		return &rcetypes.ToolResult{Content: maxRecursionSentinel}, nil
	}

	system := parsed.System
	if parsed.ContextQuery != "" && t.policy.ContextTool != nil {
		ctxArgs, _ := json.Marshal(map[string]string{"query": parsed.ContextQuery})
		ctxResult, err := t.policy.ContextTool.Execute(ctx, ctxArgs)
		if err == nil && ctxResult != nil && !ctxResult.IsError {
			system = ctxResult.Content + "\n\n" + system
		}
	}

	childTools := make(map[string]rcetypes.Tool, len(t.baseOpts.ExtraTools))
	for name, tool := range t.baseOpts.ExtraTools {
		if name == "sub_complete" || name == "batch_complete" {
			continue
		}
		childTools[name] = tool
	}
	childSub := NewSubCompleteTool(t.orch, child, t.policy, t.state, t.baseOpts)
	childTools["sub_complete"] = childSub
	childTools["batch_complete"] = NewBatchCompleteTool(childSub)

	childOpts := t.baseOpts
	childOpts.Ledger = child
	childOpts.Depth = child.Depth()
	childOpts.ExtraTools = childTools
	childOpts.ParentRecorder = recorderFromContext(ctx)
	childOpts.ParentCallID = parentCallIDFromContext(ctx)
	childOpts.SubCallType = "sub_complete"

	result := t.orch.Complete(ctx, parsed.Query, system, childOpts)
	t.ledgerMu.Lock()
	t.ledger.ChargeBack(child)
	t.ledgerMu.Unlock()
	// child's own Consumed* figures, not result.TotalTokens/TotalCost: once
	// ParentRecorder is shared, those aggregate the whole outer trajectory
	// rather than just this sub-call's contribution.
	t.state.recordSpend(child.ConsumedCost())

	payload, _ := json.Marshal(map[string]interface{}{
		"response":         result.Response,
		"total_tokens":     child.ConsumedTokens(),
		"total_tool_calls": child.ConsumedToolCalls(),
		"total_cost":       child.ConsumedCost(),
	})
	return &rcetypes.ToolResult{Content: string(payload), IsError: result.Violation != nil}, nil
}

// BatchCompleteTool implements batch_complete (spec §4.7): splits a total
// budget evenly across queries and runs each through sub_complete under a
// semaphore, returning results in input order.
type BatchCompleteTool struct {
	sub *SubCompleteTool
}

func NewBatchCompleteTool(sub *SubCompleteTool) *BatchCompleteTool {
	return &BatchCompleteTool{sub: sub}
}

func (t *BatchCompleteTool) Name() string { return "batch_complete" }
func (t *BatchCompleteTool) Description() string {
	return "Runs multiple sub-completions concurrently, splitting a total budget evenly."
}

func (t *BatchCompleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"queries": {"type": "array", "items": {"type": "string"}},
			"max_parallel": {"type": "integer"},
			"total_budget": {"type": "integer"}
		},
		"required": ["queries"]
	}`)
}

type batchCompleteArgs struct {
	Queries     []string `json:"queries"`
	MaxParallel int      `json:"max_parallel"`
	TotalBudget int      `json:"total_budget"`
}

func (t *BatchCompleteTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	var parsed batchCompleteArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: "batch_complete: invalid arguments: " + err.Error()}, nil
	}
	if len(parsed.Queries) == 0 {
		return &rcetypes.ToolResult{IsError: true, Content: "batch_complete: queries must be non-empty"}, nil
	}

	share := 0
	if parsed.TotalBudget > 0 {
		share = parsed.TotalBudget / len(parsed.Queries)
	}
	maxParallel := parsed.MaxParallel
	if maxParallel <= 0 {
		maxParallel = len(parsed.Queries)
	}

	results := make([]string, len(parsed.Queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, q := range parsed.Queries {
		i, q := i, q
		g.Go(func() error {
			subArgs, _ := json.Marshal(subCompleteArgs{Query: q, MaxTokens: share})
			r, err := t.sub.Execute(gctx, subArgs)
			if err != nil {
				results[i] = err.Error()
				return nil
			}
			results[i] = r.Content
			return nil
		})
	}
	_ = g.Wait()

	payload, _ := json.Marshal(results)
	return &rcetypes.ToolResult{Content: string(payload)}, nil
}

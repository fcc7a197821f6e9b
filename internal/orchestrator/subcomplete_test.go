package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/internal/llm/mock"
	"github.com/basilisk-ai/rce/internal/toolkit"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

func newSubCompleteFixture() (*Orchestrator, *budget.Ledger, *SubCompleteTool) {
	provider := mock.New(
		mock.Turn{ToolCalls: []rcetypes.ToolCall{{ID: "1", Name: "sub_complete", Arguments: json.RawMessage(`{"query":"child task"}`)}}, Usage: rcetypes.Usage{InputTokens: 10, OutputTokens: 5}},
		mock.Turn{Text: "child answer", Usage: rcetypes.Usage{InputTokens: 8, OutputTokens: 4}},
		mock.Turn{Text: "parent final", Usage: rcetypes.Usage{InputTokens: 6, OutputTokens: 2}},
	)
	orch := New(provider, toolkit.New(), nil)
	ledger := budget.New(budget.Limits{MaxDepth: 3, Tokens: 100000, Cost: 100})
	policy := SubCompletionPolicy{MaxPerTurn: 5, MaxCostPerSession: 100, InheritanceFactor: 0.5}
	state := NewSessionSubState()
	sub := NewSubCompleteTool(orch, ledger, policy, state, Options{MaxDepth: 3, ExtraTools: map[string]rcetypes.Tool{}})
	return orch, ledger, sub
}

func TestSubCompleteSplicesChildEventsIntoOuterTrajectory(t *testing.T) {
	orch, ledger, sub := newSubCompleteFixture()
	extras := map[string]rcetypes.Tool{"sub_complete": sub}

	result := orch.Complete(context.Background(), "parent task", "", Options{MaxDepth: 3, Ledger: ledger, ExtraTools: extras})

	if result.Response != "parent final" {
		t.Fatalf("expected parent final response, got %q", result.Response)
	}

	callIDs := map[string]bool{}
	var subEvents int
	for _, e := range result.Events {
		callIDs[e.CallID] = true
	}
	for _, e := range result.Events {
		if e.SubCallType == "" {
			continue
		}
		subEvents++
		if e.SubCallType != "sub_complete" {
			t.Fatalf("expected sub_call_type sub_complete, got %q", e.SubCallType)
		}
		if e.ParentCallID == "" {
			t.Fatalf("expected a non-empty parent_call_id on a spliced event")
		}
		if !callIDs[e.ParentCallID] {
			t.Fatalf("parent_call_id %q does not resolve to any call id in the trajectory", e.ParentCallID)
		}
		if e.Depth != 1 {
			t.Fatalf("expected spliced event depth 1, got %d", e.Depth)
		}
	}
	if subEvents == 0 {
		t.Fatalf("expected at least one spliced sub-completion event")
	}
}

func TestSubCompletePerTurnCapRejectsExcessCalls(t *testing.T) {
	provider := mock.New(mock.Turn{Text: "child answer", Usage: rcetypes.Usage{InputTokens: 1, OutputTokens: 1}})
	orch := New(provider, toolkit.New(), nil)
	ledger := budget.New(budget.Limits{MaxDepth: 3, Tokens: 100000, Cost: 100})
	policy := SubCompletionPolicy{MaxPerTurn: 1, MaxCostPerSession: 100, InheritanceFactor: 0.5}
	state := NewSessionSubState()
	sub := NewSubCompleteTool(orch, ledger, policy, state, Options{MaxDepth: 3, ExtraTools: map[string]rcetypes.Tool{}})

	args, _ := json.Marshal(subCompleteArgs{Query: "q1"})
	first, err := sub.Execute(context.Background(), args)
	if err != nil || first.IsError {
		t.Fatalf("expected the first sub_complete call to succeed, got %+v err=%v", first, err)
	}

	second, err := sub.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.IsError {
		t.Fatalf("expected the second sub_complete call in the same turn to be rejected by the per-turn cap")
	}
}

func TestSubCompleteSessionCostCapRejectsFurtherCalls(t *testing.T) {
	provider := mock.New(mock.Turn{Text: "expensive answer", Usage: rcetypes.Usage{InputTokens: 100000, OutputTokens: 100000}})
	orch := New(provider, toolkit.New(), nil)
	ledger := budget.New(budget.Limits{MaxDepth: 3, Tokens: 100000000, Cost: 100})
	policy := SubCompletionPolicy{MaxPerTurn: 10, MaxCostPerSession: 0.01, InheritanceFactor: 0.9}
	state := NewSessionSubState()
	sub := NewSubCompleteTool(orch, ledger, policy, state, Options{MaxDepth: 3, ExtraTools: map[string]rcetypes.Tool{}})

	args, _ := json.Marshal(subCompleteArgs{Query: "q1"})
	first, err := sub.Execute(context.Background(), args)
	if err != nil || first.IsError {
		t.Fatalf("expected the first sub_complete call to succeed, got %+v err=%v", first, err)
	}

	second, err := sub.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.IsError {
		t.Fatalf("expected the session cost cap to reject a further sub_complete call")
	}
}

func TestSubCompleteDepthExceededReturnsSentinel(t *testing.T) {
	provider := mock.New(mock.Turn{Text: "unreachable"})
	orch := New(provider, toolkit.New(), nil)
	ledger := budget.New(budget.Limits{MaxDepth: 1, Tokens: 1000, Cost: 10})
	ledger.SetDepth(1)
	policy := SubCompletionPolicy{MaxPerTurn: 5, MaxCostPerSession: 10, InheritanceFactor: 0.5}
	state := NewSessionSubState()
	sub := NewSubCompleteTool(orch, ledger, policy, state, Options{MaxDepth: 1, ExtraTools: map[string]rcetypes.Tool{}})

	args, _ := json.Marshal(subCompleteArgs{Query: "q1"})
	result, err := sub.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != maxRecursionSentinel {
		t.Fatalf("expected recursion sentinel, got %q", result.Content)
	}
}

func TestBatchCompletePreservesInputOrder(t *testing.T) {
	provider := mock.New(mock.Turn{Text: "answer", Usage: rcetypes.Usage{InputTokens: 1, OutputTokens: 1}})
	orch := New(provider, toolkit.New(), nil)
	ledger := budget.New(budget.Limits{MaxDepth: 3, Tokens: 100000, Cost: 100})
	policy := SubCompletionPolicy{MaxPerTurn: 10, MaxCostPerSession: 100, InheritanceFactor: 0.5}
	state := NewSessionSubState()
	sub := NewSubCompleteTool(orch, ledger, policy, state, Options{MaxDepth: 3, ExtraTools: map[string]rcetypes.Tool{}})
	batch := NewBatchCompleteTool(sub)

	args, _ := json.Marshal(batchCompleteArgs{Queries: []string{"a", "b", "c"}})
	result, err := batch.Execute(context.Background(), args)
	if err != nil || result.IsError {
		t.Fatalf("unexpected error: %+v, %v", result, err)
	}
	var out []string
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatalf("failed to unmarshal batch result: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
}

package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/internal/llm/mock"
	"github.com/basilisk-ai/rce/internal/toolkit"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

func TestCompleteEndsNormallyWithNoToolCalls(t *testing.T) {
	provider := mock.New(mock.Turn{Text: "final answer", Usage: rcetypes.Usage{InputTokens: 10, OutputTokens: 5}})
	orch := New(provider, toolkit.New(), nil)

	result := orch.Complete(context.Background(), "hello", "", Options{})
	if result.Response != "final answer" {
		t.Fatalf("expected final answer, got %q", result.Response)
	}
	if result.Violation != nil {
		t.Fatalf("expected no violation, got %+v", result.Violation)
	}
	if result.TotalTokens != 15 {
		t.Fatalf("expected total_tokens 15, got %d", result.TotalTokens)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(result.Events))
	}
}

func TestTotalTokensEqualsSumOverEvents(t *testing.T) {
	provider := mock.New(
		mock.Turn{Text: "", ToolCalls: []rcetypes.ToolCall{{ID: "1", Name: "noop"}}, Usage: rcetypes.Usage{InputTokens: 100, OutputTokens: 20}},
		mock.Turn{Text: "done", Usage: rcetypes.Usage{InputTokens: 50, OutputTokens: 10}},
	)
	reg := toolkit.New()
	_ = reg.Register(&noopTool{})
	orch := New(provider, reg, nil)

	result := orch.Complete(context.Background(), "task", "", Options{})
	sum := 0
	for _, e := range result.Events {
		sum += e.InputTokens + e.OutputTokens
	}
	if sum != result.TotalTokens {
		t.Fatalf("expected total_tokens %d to equal per-event sum %d", result.TotalTokens, sum)
	}
	if result.TotalToolCalls != 1 {
		t.Fatalf("expected 1 total tool call, got %d", result.TotalToolCalls)
	}
}

func TestBudgetExhaustionMidFlight(t *testing.T) {
	provider := mock.New(
		mock.Turn{Text: "a", Usage: rcetypes.Usage{InputTokens: 600, OutputTokens: 0}, ToolCalls: []rcetypes.ToolCall{{ID: "1", Name: "noop"}}},
		mock.Turn{Text: "b", Usage: rcetypes.Usage{InputTokens: 600, OutputTokens: 0}, ToolCalls: []rcetypes.ToolCall{{ID: "1", Name: "noop"}}},
		mock.Turn{Text: "c", Usage: rcetypes.Usage{InputTokens: 600, OutputTokens: 0}},
	)
	reg := toolkit.New()
	_ = reg.Register(&noopTool{})
	orch := New(provider, reg, nil)

	result := orch.Complete(context.Background(), "task", "", Options{TokenBudget: 1000})
	if result.Violation == nil || result.Violation.Kind != budget.TokenExhausted {
		t.Fatalf("expected token_exhausted violation, got %+v", result.Violation)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected two events before exhaustion halted the loop, got %d", len(result.Events))
	}
}

type sleepTool struct {
	name string
	wait time.Duration
}

func (s *sleepTool) Name() string            { return s.name }
func (s *sleepTool) Description() string     { return "sleeps then echoes its name" }
func (s *sleepTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (s *sleepTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	time.Sleep(s.wait)
	return &rcetypes.ToolResult{Content: s.name}, nil
}

func TestParallelToolDispatchPreservesCallOrder(t *testing.T) {
	reg := toolkit.New()
	_ = reg.Register(&sleepTool{name: "slow", wait: 40 * time.Millisecond})
	_ = reg.Register(&sleepTool{name: "fast", wait: 5 * time.Millisecond})
	_ = reg.Register(&sleepTool{name: "mid", wait: 20 * time.Millisecond})

	provider := mock.New(
		mock.Turn{ToolCalls: []rcetypes.ToolCall{
			{ID: "1", Name: "slow"},
			{ID: "2", Name: "fast"},
			{ID: "3", Name: "mid"},
		}},
		mock.Turn{Text: "done"},
	)
	orch := New(provider, reg, nil)

	start := time.Now()
	result := orch.Complete(context.Background(), "task", "", Options{ParallelTools: true, MaxParallel: 3})
	elapsed := time.Since(start)

	if elapsed > 60*time.Millisecond {
		t.Fatalf("expected parallel dispatch to finish near the slowest call (~40ms), took %s", elapsed)
	}

	firstEvent := result.Events[0]
	if len(firstEvent.ToolResults) != 3 {
		t.Fatalf("expected 3 tool results, got %d", len(firstEvent.ToolResults))
	}
	expectedOrder := []string{"1", "2", "3"}
	for i, r := range firstEvent.ToolResults {
		if r.ToolCallID != expectedOrder[i] {
			t.Fatalf("expected tool result %d to correspond to call id %s, got %s", i, expectedOrder[i], r.ToolCallID)
		}
	}
}

type noopTool struct{}

func (noopTool) Name() string            { return "noop" }
func (noopTool) Description() string     { return "does nothing" }
func (noopTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (noopTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	return &rcetypes.ToolResult{Content: "ok"}, nil
}

var _ llm.Provider = (*mock.Provider)(nil)

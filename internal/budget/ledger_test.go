package budget

import (
	"testing"
	"time"
)

func TestCheckNoLimitsPasses(t *testing.T) {
	l := New(Limits{})
	if v := l.Check(time.Now()); v != nil {
		t.Fatalf("expected no violation, got %+v", v)
	}
}

func TestCheckDepthExceeded(t *testing.T) {
	l := New(Limits{MaxDepth: 2})
	l.SetDepth(3)
	v := l.Check(time.Now())
	if v == nil || v.Kind != DepthExceeded {
		t.Fatalf("expected depth_exceeded, got %+v", v)
	}
}

func TestCheckTokenExhausted(t *testing.T) {
	l := New(Limits{Tokens: 1000})
	l.Charge(600, 0, 0)
	if v := l.Check(time.Now()); v != nil {
		t.Fatalf("expected no violation at 600/1000, got %+v", v)
	}
	l.Charge(600, 0, 0)
	v := l.Check(time.Now())
	if v == nil || v.Kind != TokenExhausted {
		t.Fatalf("expected token_exhausted at 1200/1000, got %+v", v)
	}
	if l.ConsumedTokens() != 1200 {
		t.Fatalf("expected 1200 consumed tokens, got %d", l.ConsumedTokens())
	}
}

func TestCheckDeadlineReached(t *testing.T) {
	l := New(Limits{Deadline: time.Now().Add(-time.Second)})
	v := l.Check(time.Now())
	if v == nil || v.Kind != DeadlineReached {
		t.Fatalf("expected deadline_reached, got %+v", v)
	}
}

func TestDeriveChildCapsByInheritanceFactor(t *testing.T) {
	parent := New(Limits{Tokens: 1000, Cost: 2.0, ToolCalls: 10})
	child := parent.DeriveChild(10000, 0.5)
	if child.limits.Tokens != 500 {
		t.Fatalf("expected derived token cap 500, got %d", child.limits.Tokens)
	}
	if child.Depth() != 1 {
		t.Fatalf("expected child depth 1, got %d", child.Depth())
	}

	requested := New(Limits{Tokens: 1000})
	small := requested.DeriveChild(100, 0.5)
	if small.limits.Tokens != 100 {
		t.Fatalf("expected requested 100 to win over 500 share, got %d", small.limits.Tokens)
	}
}

func TestChargeBackFoldsChildIntoParent(t *testing.T) {
	parent := New(Limits{Tokens: 1000})
	child := parent.DeriveChild(500, 0.5)
	child.Charge(100, 50, 0.01)
	child.ChargeToolCall()
	parent.ChargeBack(child)
	if parent.ConsumedTokens() != 150 {
		t.Fatalf("expected parent consumed 150 tokens, got %d", parent.ConsumedTokens())
	}
	if parent.ConsumedToolCalls() != 1 {
		t.Fatalf("expected parent consumed 1 tool call, got %d", parent.ConsumedToolCalls())
	}
}

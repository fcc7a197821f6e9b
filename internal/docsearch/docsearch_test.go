package docsearch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSearchRanksByKeywordOverlap(t *testing.T) {
	idx := New(
		Doc{Title: "budget", Body: "The budget ledger tracks tokens, cost, tool calls, and a deadline."},
		Doc{Title: "sandbox", Body: "The interpreter sandbox runs Starlark code against a named session."},
	)
	args, _ := json.Marshal(map[string]string{"query": "budget tokens"})
	result, err := idx.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "budget") || strings.Contains(result.Content, "sandbox") {
		t.Fatalf("expected only the budget doc to rank for this query, got %q", result.Content)
	}
}

func TestSearchWithNoMatchesReturnsEmptyResult(t *testing.T) {
	idx := New(Doc{Title: "budget", Body: "tokens and cost"})
	args, _ := json.Marshal(map[string]string{"query": "nonexistent-term"})
	result, err := idx.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError || result.Content != "" {
		t.Fatalf("expected an empty, non-error result for no matches, got %+v", result)
	}
}

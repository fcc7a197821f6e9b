package toolkit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

type echoTool struct {
	schema json.RawMessage
}

func (e *echoTool) Name() string              { return "echo" }
func (e *echoTool) Description() string       { return "echoes its input" }
func (e *echoTool) Schema() json.RawMessage   { return e.schema }
func (e *echoTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	return &rcetypes.ToolResult{Content: string(args)}, nil
}

func requiredStringSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"text": {"type": "string"}},
		"required": ["text"]
	}`)
}

func TestRegisterGetUnregisterRoundTrip(t *testing.T) {
	r := New()
	tool := &echoTool{schema: requiredStringSchema()}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Get("echo"); !ok {
		t.Fatalf("expected echo to be registered")
	}
	r.Unregister("echo")
	if _, ok := r.Get("echo"); ok {
		t.Fatalf("expected echo to be gone after unregister")
	}
	if len(r.List()) != 0 {
		t.Fatalf("expected empty registry after unregister, got %v", r.List())
	}
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := New()
	tool := &echoTool{schema: requiredStringSchema()}
	if err := r.Register(tool); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Fatalf("expected error registering duplicate name")
	}
}

func TestDispatchNotFoundReturnsToolResult(t *testing.T) {
	r := New()
	d := NewDispatcher(r, nil)
	result := d.Dispatch(context.Background(), rcetypes.ToolCall{ID: "1", Name: "missing"})
	if !result.IsError {
		t.Fatalf("expected error result for missing tool")
	}
}

func TestDispatchValidationRejectsMissingRequiredField(t *testing.T) {
	r := New()
	tool := &echoTool{schema: requiredStringSchema()}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(r, nil)
	result := d.Dispatch(context.Background(), rcetypes.ToolCall{ID: "1", Name: "echo", Arguments: json.RawMessage(`{}`)})
	if !result.IsError {
		t.Fatalf("expected validation error for missing required field")
	}
}

func TestDispatchValidationRejectsWrongType(t *testing.T) {
	r := New()
	tool := &echoTool{schema: requiredStringSchema()}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(r, nil)
	result := d.Dispatch(context.Background(), rcetypes.ToolCall{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"text": 5}`)})
	if !result.IsError {
		t.Fatalf("expected validation error for wrong type")
	}
}

func TestExtrasShadowBaseRegistryAndDoNotLeak(t *testing.T) {
	r := New()
	base := &echoTool{schema: json.RawMessage(`{}`)}
	if err := r.Register(base); err != nil {
		t.Fatalf("register base: %v", err)
	}

	shadow := &echoTool{schema: json.RawMessage(`{}`)}
	d := NewDispatcher(r, map[string]rcetypes.Tool{"echo": shadow})

	result := d.Dispatch(context.Background(), rcetypes.ToolCall{ID: "1", Name: "echo", Arguments: json.RawMessage(`"from shadow"`)})
	if result.Content != `"from shadow"` {
		t.Fatalf("expected shadow tool to handle the call, got %q", result.Content)
	}

	// A fresh dispatcher without the extra must only see the base tool.
	plain := NewDispatcher(r, nil)
	if got, ok := plain.resolve("echo"); !ok || got != base {
		t.Fatalf("expected a fresh dispatcher to resolve echo to the base registry tool")
	}
}

func TestPanicInHandlerBecomesErrorResult(t *testing.T) {
	r := New()
	panicking := panicTool{}
	if err := r.Register(panicking); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(r, nil)
	result := d.Dispatch(context.Background(), rcetypes.ToolCall{ID: "1", Name: "boom"})
	if !result.IsError {
		t.Fatalf("expected panic to surface as an error tool result")
	}
}

type panicTool struct{}

func (panicTool) Name() string            { return "boom" }
func (panicTool) Description() string     { return "always panics" }
func (panicTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (panicTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	panic("kaboom")
}

package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// NotFoundError reports dispatch against an unknown tool name, carrying the
// list of tools that were actually available (spec §7: "not_found, with the
// list of available tools").
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("toolkit: tool %q not found; available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Dispatcher resolves and invokes tools for a single completion, composing
// the global Registry with a per-call set of extras. Extras shadow registry
// entries of the same name and are never visible outside this Dispatcher,
// satisfying spec §4.1's leakage-prevention requirement for recursion and
// terminal tools.
type Dispatcher struct {
	base   *Registry
	extras map[string]rcetypes.Tool
}

// NewDispatcher builds a Dispatcher over base with the given extras. extras
// may be nil or empty.
func NewDispatcher(base *Registry, extras map[string]rcetypes.Tool) *Dispatcher {
	if extras == nil {
		extras = map[string]rcetypes.Tool{}
	}
	return &Dispatcher{base: base, extras: extras}
}

// resolve looks up name, extras first, then the base registry.
func (d *Dispatcher) resolve(name string) (rcetypes.Tool, bool) {
	if t, ok := d.extras[name]; ok {
		return t, true
	}
	return d.base.Get(name)
}

// Descriptors returns the effective tool set (registry ∪ extras) advertised
// to the LLM Adapter for this call.
func (d *Dispatcher) Descriptors() []rcetypes.ToolDescriptor {
	out := d.base.Descriptors()
	for _, name := range sortedExtraKeys(d.extras) {
		t := d.extras[name]
		out = append(out, rcetypes.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

func sortedExtraKeys(m map[string]rcetypes.Tool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// small maps (handful of extras per call); insertion order doesn't
	// matter for correctness, only for stable descriptor ordering in tests.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Dispatch resolves name, validates args against its schema, and executes
// it. A missing tool or a validation failure is returned as a structured
// *rcetypes.ToolResult with IsError=true rather than a Go error, per spec
// §4.6.f and §7 ("all returned as tool results"). A handler that returns an
// error or panics (recovered by invokeSafely) likewise yields an IsError
// result; Dispatch itself has no error return.
func (d *Dispatcher) Dispatch(ctx context.Context, call rcetypes.ToolCall) *rcetypes.ToolResult {
	tool, ok := d.resolve(call.Name)
	if !ok {
		return &rcetypes.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    (&NotFoundError{Name: call.Name, Available: d.availableNames()}).Error(),
		}
	}

	if schema, hasSchema := d.schemaFor(call.Name); hasSchema {
		var v interface{}
		args := call.Arguments
		if len(args) == 0 {
			args = []byte(`{}`)
		}
		if err := json.Unmarshal(args, &v); err != nil {
			return errorResult(call.ID, (&ValidationError{ToolName: call.Name, Detail: "arguments are not valid JSON: " + err.Error()}).Error())
		}
		if err := schema.Validate(v); err != nil {
			return errorResult(call.ID, (&ValidationError{ToolName: call.Name, Detail: err.Error()}).Error())
		}
	}

	result, err := invokeSafely(ctx, tool, call.Arguments)
	if err != nil {
		return errorResult(call.ID, fmt.Sprintf("toolkit: handler error for %q: %v", call.Name, err))
	}
	result.ToolCallID = call.ID
	return result
}

func (d *Dispatcher) schemaFor(name string) (interface {
	Validate(interface{}) error
}, bool) {
	if _, ok := d.extras[name]; ok {
		// Extras are not precompiled; their schema is compiled on every call.
		s, err := compileSchema(name, d.extras[name].Schema())
		if err != nil {
			return nil, false
		}
		return s, true
	}
	d.base.mu.RLock()
	s, ok := d.base.schema[name]
	d.base.mu.RUnlock()
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

func (d *Dispatcher) availableNames() []string {
	names := d.base.List()
	for _, name := range sortedExtraKeys(d.extras) {
		names = append(names, name)
	}
	return names
}

func errorResult(callID, content string) *rcetypes.ToolResult {
	return &rcetypes.ToolResult{ToolCallID: callID, IsError: true, Content: content}
}

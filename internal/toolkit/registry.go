// Package toolkit implements the Tool Registry: a name→handler dispatch
// table with JSON-Schema-validated parameters, plus the per-call "extras"
// mechanism the Orchestrator uses to scope recursion and terminal tools to
// a single completion. Grounded on the teacher's
// internal/agent/tool_registry.go (sync.RWMutex-guarded map, register/
// unregister/get, structured not-found errors) with schema validation added
// because the teacher hands raw json.RawMessage straight to handlers.
package toolkit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Registry is a thread-safe name→Tool table. The zero value is not usable;
// construct with New.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]rcetypes.Tool
	schema map[string]*jsonschema.Schema
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		tools:  make(map[string]rcetypes.Tool),
		schema: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool, compiling its schema once so Dispatch never pays
// compilation cost per call. It fails if a tool with the same name is
// already registered, matching spec §4.1 ("register (fails if name
// conflict)").
func (r *Registry) Register(tool rcetypes.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("toolkit: tool %q already registered", name)
	}
	compiled, err := compileSchema(name, tool.Schema())
	if err != nil {
		return fmt.Errorf("toolkit: compiling schema for %q: %w", name, err)
	}
	r.tools[name] = tool
	r.schema[name] = compiled
	return nil
}

// Unregister removes a tool by name. It is not an error to unregister a
// name that isn't present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schema, name)
}

// Get returns the tool registered under name, or false if absent.
func (r *Registry) Get(name string) (rcetypes.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tool names in sorted order, for deterministic
// error messages and descriptor generation.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the ToolDescriptor for every registered tool, for
// handing to the LLM Adapter.
func (r *Registry) Descriptors() []rcetypes.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rcetypes.ToolDescriptor, 0, len(r.tools))
	for _, name := range sortedKeys(r.tools) {
		t := r.tools[name]
		out = append(out, rcetypes.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

func sortedKeys(m map[string]rcetypes.Tool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	resource := "tool://" + name
	if err := c.AddResource(resource, bytesReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

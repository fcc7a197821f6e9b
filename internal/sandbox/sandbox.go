// Package sandbox implements the Interpreter Sandbox: in-process, restricted
// code execution with an import allowlist, resource caps, and per-session
// persistent variable state.
//
// The teacher (internal/tools/sandbox) shells out to Docker/Firecracker to
// run arbitrary Python/Node/Go/Bash — heavier isolation than spec §4.3 asks
// for ("strong-enough-for-AI-generated-code, not adversarial"). This
// package keeps the teacher's architecture — an Executor exposing
// Name/Description/Schema/Execute, resource caps threaded through a
// parameters/result pair, functional Options — but runs code in-process
// with go.starlark.net instead of a container backend, since Starlark is
// deterministic and side-effect-free by construction: there is no ambient
// filesystem/network/process access to begin with, so the import allowlist
// becomes "which predeclared modules this thread's globals expose."
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/basilisk-ai/rce/internal/session"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Profile selects a resource-cap preset, per spec §4.3's table.
type Profile string

const (
	ProfileQuick    Profile = "quick"
	ProfileDefault  Profile = "default"
	ProfileAnalysis Profile = "analysis"
	ProfileExtended Profile = "extended"
)

// Preset is the (timeout, memory cap) pair a Profile resolves to.
type Preset struct {
	Timeout   time.Duration
	MemoryCap int64 // bytes
}

// Presets is the default profile table from spec §4.3. Callers that need a
// custom table can build their own map and pass it via WithPresets.
var Presets = map[Profile]Preset{
	ProfileQuick:    {Timeout: 5 * time.Second, MemoryCap: 128 << 20},
	ProfileDefault:  {Timeout: 30 * time.Second, MemoryCap: 512 << 20},
	ProfileAnalysis: {Timeout: 120 * time.Second, MemoryCap: 2 << 30},
	ProfileExtended: {Timeout: 300 * time.Second, MemoryCap: 4 << 30},
}

// Global output caps enforced regardless of profile (spec §4.3).
const (
	MaxOutputBytes = 100 * 1024
	MaxOutputLines = 1000
)

// maxSteps is the Starlark computation-step ceiling used as a CPU/memory
// proxy; see the stepsToSeconds doc comment for why a proxy is necessary.
const maxSteps = 200_000_000

// ExecuteParams is the input to Executor.Run.
type ExecuteParams struct {
	Code             string
	SessionID        string
	Profile          Profile
	ContextOverrides map[string]interface{}
}

// SecurityViolation reports a disallowed import, per spec §4.3/§7.
type SecurityViolation struct {
	Module  string
	Allowed []string
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("sandbox: import %q is not in the allowlist (%s)", e.Module, strings.Join(e.Allowed, ", "))
}

// TimeoutError reports that execution exceeded its profile's timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sandbox: execution exceeded timeout of %s", e.Timeout)
}

// ResourceExceededError reports a breach of a non-timeout resource cap
// (output size, step budget standing in for CPU/memory when the runtime
// cannot observe real RSS).
type ResourceExceededError struct {
	Resource string
	Cap      int64
}

func (e *ResourceExceededError) Error() string {
	return fmt.Sprintf("sandbox: resource cap exceeded: %s (cap=%d)", e.Resource, e.Cap)
}

// Executor runs code against sessions owned by a session.Manager. It
// implements rcetypes.Tool so it can be registered directly with the Tool
// Registry, matching the teacher's sandbox.Executor shape
// (internal/tools/sandbox/executor.go).
type Executor struct {
	sessions *session.Manager
	cache    *resultCache
}

// Option configures an Executor at construction, following the teacher's
// functional-options style (internal/tools/sandbox/executor.go's
// WithBackend/WithPoolSize/...).
type Option func(*Executor)

// WithCacheSize overrides the memoization cache's capacity (default 256).
func WithCacheSize(n int) Option {
	return func(e *Executor) { e.cache = newResultCache(n) }
}

// NewExecutor builds an Executor backed by sessions.
func NewExecutor(sessions *session.Manager, opts ...Option) *Executor {
	e := &Executor{sessions: sessions, cache: newResultCache(256)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Name() string { return "execute_code" }
func (e *Executor) Description() string {
	return "Executes a code fragment against a persistent named session and returns its stdout."
}

func (e *Executor) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"code": {"type": "string", "description": "Code to execute"},
			"session_id": {"type": "string", "description": "Named persistent session"},
			"profile": {"type": "string", "enum": ["quick", "default", "analysis", "extended"]}
		},
		"required": ["code", "session_id"]
	}`)
}

// Execute adapts rcetypes.Tool's signature onto Run, decoding JSON
// arguments into ExecuteParams and re-encoding the InterpreterResult.
func (e *Executor) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	params, err := decodeExecuteParams(args)
	if err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: err.Error()}, nil
	}
	result := e.Run(ctx, params)
	content, encErr := encodeInterpreterResult(result)
	if encErr != nil {
		return nil, encErr
	}
	return &rcetypes.ToolResult{Content: content, IsError: result.Error != ""}, nil
}

// Run executes params.Code against the named session, honoring profile
// caps, the import allowlist, and the memoization cache. It never returns a
// Go error for a code-level failure: every failure mode spec §4.3 names
// (execution_error, timeout, security_violation, resource_exceeded) is
// represented inside the returned InterpreterResult, so the Orchestrator can
// hand it to the LLM as an ordinary tool result.
func (e *Executor) Run(ctx context.Context, params ExecuteParams) rcetypes.InterpreterResult {
	profile := params.Profile
	if profile == "" {
		profile = ProfileDefault
	}
	preset, ok := Presets[profile]
	if !ok {
		preset = Presets[ProfileDefault]
	}

	sess := e.sessions.GetOrCreate(params.SessionID)
	sess.Lock()
	defer sess.Unlock()

	stateHash := hashState(sess.State)
	if cached, hit := e.cache.get(params.Code, stateHash); hit {
		return cached
	}

	if violation := checkImports(params.Code); violation != nil {
		return rcetypes.InterpreterResult{Error: violation.Error()}
	}

	result := e.execute(ctx, sess, params.Code, params.ContextOverrides, preset)
	e.cache.put(params.Code, stateHash, result)
	return result
}

func (e *Executor) execute(ctx context.Context, sess *session.Session, code string, overrides map[string]interface{}, preset Preset) rcetypes.InterpreterResult {
	out := newOutputBuffer()
	thread := &starlark.Thread{
		Name: sess.ID,
		Print: func(_ *starlark.Thread, msg string) {
			out.write(msg + "\n")
		},
		// Load resolves load() of an allowlisted module to that module's
		// members; checkImports has already rejected every other name.
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			name := strings.TrimSuffix(module, ".star")
			mods := starlark.StringDict{}
			injectPredeclared(mods)
			if mod, ok := mods[name].(*starlarkstruct.Module); ok && isAllowedModule(name) {
				return mod.Members, nil
			}
			return nil, &SecurityViolation{Module: name, Allowed: allowedModulesList()}
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)

	globals, err := restoreGlobals(sess.State)
	if err != nil {
		return rcetypes.InterpreterResult{Error: fmt.Sprintf("sandbox: restoring session state: %v", err)}
	}
	for k, v := range overrides {
		starVal, convErr := toStarlark(v)
		if convErr != nil {
			continue
		}
		globals[k] = starVal
	}
	injectPredeclared(globals)

	start := time.Now()
	done := make(chan execOutcome, 1)
	go func() {
		resultGlobals, execErr := starlark.ExecFileOptions(syntaxOptions(), thread, sess.ID+".star", code, globals)
		done <- execOutcome{globals: resultGlobals, err: execErr}
	}()

	var outcome execOutcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		return rcetypes.InterpreterResult{
			Stdout:        out.string(),
			Error:         (&TimeoutError{Timeout: preset.Timeout}).Error(),
			ExecutionTime: time.Since(start).Seconds(),
			Truncated:     out.truncated,
		}
	case <-time.After(preset.Timeout):
		return rcetypes.InterpreterResult{
			Stdout:        out.string(),
			Error:         (&TimeoutError{Timeout: preset.Timeout}).Error(),
			ExecutionTime: time.Since(start).Seconds(),
			Truncated:     out.truncated,
		}
	}

	elapsed := time.Since(start)
	cpu := stepsToSeconds(thread.Steps)

	result := rcetypes.InterpreterResult{
		Stdout:        out.string(),
		ExecutionTime: elapsed.Seconds(),
		Truncated:     out.truncated,
		CPUTime:       &cpu,
	}
	if outcome.err != nil {
		if isResourceErr(outcome.err) {
			result.Error = (&ResourceExceededError{Resource: "step_budget", Cap: maxSteps}).Error()
		} else {
			result.Error = outcome.err.Error()
		}
		return result
	}

	persisted, persistErr := snapshotGlobals(outcome.globals)
	if persistErr == nil {
		sess.State = persisted
		sess.LastAccess = time.Now()
	}
	return result
}

type execOutcome struct {
	globals starlark.StringDict
	err     error
}

// stepsToSeconds approximates CPU time from Starlark's step counter, since
// the sandbox runs in-process and has no per-execution RSS/CPU
// introspection of its own. stepsPerSecond is a calibration constant, not a
// measured value; see DESIGN.md for the Open Question this resolves.
const stepsPerSecond = 50_000_000

func stepsToSeconds(steps uint64) float64 {
	return float64(steps) / stepsPerSecond
}

func isResourceErr(err error) bool {
	return strings.Contains(err.Error(), "exceeded maximum number of steps") ||
		strings.Contains(err.Error(), "too many steps")
}

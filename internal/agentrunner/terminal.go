package agentrunner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basilisk-ai/rce/internal/session"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// TerminalType enumerates how an agent run ended.
type TerminalType string

const (
	TerminalNatural  TerminalType = "natural_language"
	TerminalComputed TerminalType = "computed_variable"
	TerminalForced   TerminalType = "forced"
)

// AgentState is the shared, single-owner-goroutine state a terminal tool
// mutates and the Runner reads after each iteration (spec §3's AgentState).
type AgentState struct {
	IsTerminal               bool
	TerminalValue            string
	TerminalType             TerminalType
	PreviousActionSummaries  []string
	Iteration                int
}

func (s *AgentState) pushSummary(summary string) {
	const ringSize = 5
	s.PreviousActionSummaries = append(s.PreviousActionSummaries, summary)
	if len(s.PreviousActionSummaries) > ringSize {
		s.PreviousActionSummaries = s.PreviousActionSummaries[len(s.PreviousActionSummaries)-ringSize:]
	}
}

// finalTool implements FINAL(answer): the natural-language termination path.
type finalTool struct {
	state *AgentState
}

func newFinalTool(state *AgentState) *finalTool { return &finalTool{state: state} }

func (t *finalTool) Name() string        { return "FINAL" }
func (t *finalTool) Description() string { return "Ends the run, returning answer as the final result." }
func (t *finalTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"]}`)
}

type finalArgs struct {
	Answer string `json:"answer"`
}

func (t *finalTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	var parsed finalArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: "FINAL: invalid arguments: " + err.Error()}, nil
	}
	t.state.IsTerminal = true
	t.state.TerminalValue = parsed.Answer
	t.state.TerminalType = TerminalNatural
	return &rcetypes.ToolResult{Content: "acknowledged"}, nil
}

// finalVarTool implements FINAL_VAR(variable_name): reads a variable out of
// the run's interpreter session and, if present, ends the run with its
// string form as the terminal value.
type finalVarTool struct {
	state     *AgentState
	sessions  *session.Manager
	sessionID string
}

func newFinalVarTool(state *AgentState, sessions *session.Manager, sessionID string) *finalVarTool {
	return &finalVarTool{state: state, sessions: sessions, sessionID: sessionID}
}

func (t *finalVarTool) Name() string { return "FINAL_VAR" }
func (t *finalVarTool) Description() string {
	return "Ends the run, reading the final answer from a named interpreter session variable."
}
func (t *finalVarTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"variable_name":{"type":"string"}},"required":["variable_name"]}`)
}

type finalVarArgs struct {
	VariableName string `json:"variable_name"`
}

func (t *finalVarTool) Execute(ctx context.Context, args json.RawMessage) (*rcetypes.ToolResult, error) {
	var parsed finalVarArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return &rcetypes.ToolResult{IsError: true, Content: "FINAL_VAR: invalid arguments: " + err.Error()}, nil
	}

	sess := t.sessions.GetOrCreate(t.sessionID)
	sess.Lock()
	value, ok := sess.State[parsed.VariableName]
	sess.Unlock()

	if !ok {
		return &rcetypes.ToolResult{IsError: true, Content: fmt.Sprintf("FINAL_VAR: variable %q is not defined in this session", parsed.VariableName)}, nil
	}

	t.state.IsTerminal = true
	t.state.TerminalValue = fmt.Sprintf("%v", value)
	t.state.TerminalType = TerminalComputed
	return &rcetypes.ToolResult{Content: "acknowledged"}, nil
}

package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// FileSink is an append-only, JSON-lines writer, the concrete instance of
// the "generic append-only event stream" spec §6 leaves as an
// implementation detail outside the core. Uses stdlib encoding/json, since
// the wire format here is a deliberately unopinionated log line — the
// teacher itself reaches for ad hoc JSON marshaling for this kind of
// best-effort diagnostic stream rather than a schema-heavy serialization
// library.
type FileSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFileSink wraps w (typically an *os.File opened for append).
func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{w: w}
}

type eventWire struct {
	TrajectoryID  string `json:"trajectory_id"`
	CallID        string `json:"call_id"`
	ParentCallID  string `json:"parent_call_id,omitempty"`
	Depth         int    `json:"depth"`
	ResponseText  string `json:"response_text"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	DurationMS    int64  `json:"duration_ms"`
	TimestampUnix int64  `json:"timestamp_unix"`
	Error         string `json:"error,omitempty"`
	EstimatedCost float64 `json:"estimated_cost"`
	SubCallType   string `json:"sub_call_type,omitempty"`
	ToolCallCount int    `json:"tool_call_count"`
}

// Append writes e as one JSON line. Write errors are swallowed (matching
// the "never propagated up" posture of spec §7 for recorder-adjacent
// concerns) but a future caller can swap this for a fallible variant if
// durability guarantees are ever added.
func (s *FileSink) Append(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := eventWire{
		TrajectoryID:  e.TrajectoryID,
		CallID:        e.CallID,
		ParentCallID:  e.ParentCallID,
		Depth:         e.Depth,
		ResponseText:  e.ResponseText,
		InputTokens:   e.InputTokens,
		OutputTokens:  e.OutputTokens,
		DurationMS:    e.Duration.Milliseconds(),
		TimestampUnix: e.Timestamp.Unix(),
		Error:         e.Error,
		EstimatedCost: e.EstimatedCost,
		SubCallType:   e.SubCallType,
		ToolCallCount: len(e.ToolCalls),
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return
	}
	fmt.Fprintln(s.w, string(b))
}

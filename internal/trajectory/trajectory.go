// Package trajectory implements the Trajectory Recorder: an append-only
// event tree with parent/child links and per-event usage, per spec §3/§4.6.
// Grounded in shape on the teacher's internal/agent/tape (an append-only,
// replayable record of a run) but rebuilt around the TrajectoryEvent schema
// spec §3 defines rather than the teacher's chat-transcript tape format.
package trajectory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Event is one emitted TrajectoryEvent. It is immutable after creation
// (spec §3: "never mutated after emission").
type Event struct {
	TrajectoryID string
	CallID       string
	ParentCallID string // empty for root-level events

	Depth int

	PromptSnapshot []rcetypes.Message
	ResponseText   string

	ToolCalls          []rcetypes.ToolCall
	ToolResults        []rcetypes.ToolResult
	InterpreterResults []rcetypes.InterpreterResult

	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Timestamp    time.Time

	Error         string
	EstimatedCost float64
	SubCallType   string // empty unless this event belongs to a sub-completion
}

// Sink is the append-only boundary events are written to. The wire format
// is explicitly outside the core (spec §6): FileSink below is one
// implementation, and an in-memory Recorder is the default used by tests
// and by components that only need the current run's tree.
type Sink interface {
	Append(e Event)
}

// Recorder accumulates events for one top-level completion (including all
// of its spliced-in sub-completions) and optionally forwards each one to an
// external Sink. A single Recorder is shared across every sub-completion
// spliced into the same trajectory (spec §4.6), so concurrent Append calls
// from a batch_complete fan-out are possible and the event slice is guarded
// accordingly.
type Recorder struct {
	mu           sync.Mutex
	trajectoryID string
	sink         Sink
	events       []Event
}

// New starts a Recorder for a fresh trajectory. sink may be nil.
func New(sink Sink) *Recorder {
	return &Recorder{trajectoryID: uuid.NewString(), sink: sink}
}

// TrajectoryID returns the UUID shared by every event this Recorder emits.
func (r *Recorder) TrajectoryID() string { return r.trajectoryID }

// NewCallID mints a fresh call id for a turn about to begin.
func (r *Recorder) NewCallID() string { return uuid.NewString() }

// Append records e (stamping TrajectoryID if unset) and forwards it to the
// Sink, if any.
func (r *Recorder) Append(e Event) {
	if e.TrajectoryID == "" {
		e.TrajectoryID = r.trajectoryID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.sink != nil {
		r.sink.Append(e)
	}
}

// Events returns the events recorded so far, in creation order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// TotalTokens sums InputTokens+OutputTokens across every recorded event, the
// invariant spec §8 requires hold against Result.total_tokens.
func (r *Recorder) TotalTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, e := range r.events {
		total += e.InputTokens + e.OutputTokens
	}
	return total
}

// TotalToolCalls sums the ToolCall count across every recorded event.
func (r *Recorder) TotalToolCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, e := range r.events {
		total += len(e.ToolCalls)
	}
	return total
}

// TotalCost sums EstimatedCost across every recorded event.
func (r *Recorder) TotalCost() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
	for _, e := range r.events {
		total += e.EstimatedCost
	}
	return total
}

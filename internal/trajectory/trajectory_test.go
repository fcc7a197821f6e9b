package trajectory

import (
	"testing"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

type memorySink struct {
	events []Event
}

func (s *memorySink) Append(e Event) { s.events = append(s.events, e) }

func TestAppendStampsTrajectoryIDAndForwardsToSink(t *testing.T) {
	sink := &memorySink{}
	rec := New(sink)

	rec.Append(Event{CallID: "c1", InputTokens: 10, OutputTokens: 5})
	rec.Append(Event{CallID: "c2", InputTokens: 1, OutputTokens: 1})

	if len(sink.events) != 2 {
		t.Fatalf("expected sink to receive both events, got %d", len(sink.events))
	}
	for _, e := range sink.events {
		if e.TrajectoryID != rec.TrajectoryID() {
			t.Fatalf("expected every event to carry the recorder's trajectory id")
		}
		if e.Timestamp.IsZero() {
			t.Fatalf("expected Append to stamp a timestamp")
		}
	}
}

func TestTotalsSumAcrossEvents(t *testing.T) {
	rec := New(nil)
	rec.Append(Event{InputTokens: 100, OutputTokens: 20, EstimatedCost: 0.01})
	rec.Append(Event{InputTokens: 50, OutputTokens: 10, EstimatedCost: 0.02, ToolCalls: make([]rcetypes.ToolCall, 2)})

	if rec.TotalTokens() != 180 {
		t.Fatalf("expected total tokens 180, got %d", rec.TotalTokens())
	}
	if rec.TotalCost() != 0.03 {
		t.Fatalf("expected total cost 0.03, got %v", rec.TotalCost())
	}
}

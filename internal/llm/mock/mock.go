// Package mock provides a scripted Provider for deterministic tests,
// grounded on the teacher's internal/agent/tape package: a recorded
// sequence of turns is replayed call-by-call so the same Result, events,
// and counters come out every time (spec §8 "Re-executing a deterministic
// replay... reproduces the same Result, events, and counters exactly").
package mock

import (
	"context"
	"sync"

	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Turn is one scripted response. A Provider returns turns in order,
// regardless of the request content, which is sufficient for the fixed
// end-to-end scenarios spec §8 names; ResponderFunc is available for
// tests that need to react to request content.
type Turn struct {
	Text      string
	ToolCalls []rcetypes.ToolCall
	Usage     rcetypes.Usage
	Err       error
}

// ResponderFunc lets a test compute a turn dynamically from the request,
// e.g. to always invoke sub_complete regardless of depth.
type ResponderFunc func(req llm.Request, call int) Turn

// Provider replays a fixed script of turns, or calls Responder when set.
type Provider struct {
	mu        sync.Mutex
	turns     []Turn
	Responder ResponderFunc
	calls     int
}

// New builds a scripted Provider that returns turns in order. If the script
// is exhausted and Responder is nil, the last turn repeats.
func New(turns ...Turn) *Provider {
	return &Provider{turns: turns}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()

	var turn Turn
	switch {
	case p.Responder != nil:
		turn = p.Responder(req, call)
	case len(p.turns) == 0:
		turn = Turn{}
	case call < len(p.turns):
		turn = p.turns[call]
	default:
		turn = p.turns[len(p.turns)-1]
	}

	if turn.Err != nil {
		return llm.Response{}, turn.Err
	}
	return llm.Response{Text: turn.Text, ToolCalls: turn.ToolCalls, Usage: turn.Usage}, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	if len(req.Tools) > 0 {
		return nil, llm.ErrStreamingWithToolsUnsupported
	}
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 1)
	usage := resp.Usage
	ch <- llm.StreamChunk{Text: resp.Text, Usage: &usage}
	close(ch)
	return ch, nil
}

// Calls reports how many times Complete has been invoked, for assertions.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

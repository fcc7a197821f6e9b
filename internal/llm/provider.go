// Package llm defines the LLM Adapter boundary: the narrow, provider-opaque
// contract the Orchestrator calls to drive one turn. Grounded on the
// teacher's internal/agent/provider_types.go (LLMProvider, CompletionRequest,
// CompletionChunk, Tool, Model) but narrowed per spec §4.5/§6: a single
// Complete call rather than an always-streaming channel, and a Stream method
// whose contract forbids passing tools.
package llm

import (
	"context"
	"encoding/json"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// ResponseFormat requests JSON-Schema-constrained structured output from the
// provider, when supported (spec §4.6 "Structured output").
type ResponseFormat struct {
	Name   string `json:"name"`
	Schema []byte `json:"schema"`
}

// Options carries the generation knobs spec §4.5 names: "temperature, stop
// sequences, response format (if structured), and the upstream model id."
type Options struct {
	Model          string
	Temperature    float64
	StopSequences  []string
	ResponseFormat *ResponseFormat
	MaxTokens      int
}

// Request is the input to Complete.
type Request struct {
	Messages []rcetypes.Message
	Tools    []rcetypes.ToolDescriptor
	Options  Options
}

// Response is the output of Complete.
type Response struct {
	Text      string
	ToolCalls []rcetypes.ToolCall
	Usage     rcetypes.Usage
	// Parsed holds the structured-output payload when Options.ResponseFormat
	// was set and the provider honored it; nil otherwise.
	Parsed json.RawMessage
}

// StreamChunk is one token-level chunk from Stream.
type StreamChunk struct {
	Text  string
	Usage *rcetypes.Usage // populated only on the final chunk
	Err   error
}

// Provider is the adapter contract every concrete LLM backend implements.
// Implementations must be safe for concurrent use (the teacher's own
// LLMProvider doc comment states the same requirement).
type Provider interface {
	// Complete sends messages plus the effective tool set and returns one
	// response. This is the only entry point used when tools are non-empty.
	Complete(ctx context.Context, req Request) (Response, error)

	// Stream returns token-level chunks. Per spec §4.5/§9, streaming is only
	// supported when req.Tools is empty; implementations return an error
	// immediately otherwise rather than silently ignoring tool calls.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)

	// Name identifies the backend for logging and routing.
	Name() string
}

// ErrStreamingWithToolsUnsupported is returned by Stream when req.Tools is
// non-empty.
var ErrStreamingWithToolsUnsupported = &AdapterError{Kind: KindUnsupported, Detail: "streaming is not supported when tools are present"}

// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// llm.Provider contract, grounded on the teacher's
// internal/agent/providers/anthropic.go.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Provider wraps an anthropic-sdk-go client.
type Provider struct {
	client       anthropic.Client
	defaultModel anthropic.Model
}

// New builds a Provider using apiKey, or the ANTHROPIC_API_KEY environment
// variable when apiKey is empty (matching the SDK's own default option
// resolution).
func New(apiKey string, defaultModel anthropic.Model) *Provider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Provider{client: anthropic.NewClient(opts...), defaultModel: defaultModel}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := p.defaultModel
	if req.Options.Model != "" {
		model = anthropic.Model(req.Options.Model)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: int64(maxTokensOrDefault(req.Options.MaxTokens)),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := extractSystem(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}

	resp := llm.Response{
		Usage: rcetypes.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += variant.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			resp.ToolCalls = append(resp.ToolCalls, rcetypes.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}

// Stream drives a genuine token-by-token SSE stream via the SDK's
// Messages.NewStreaming, grounded on the teacher's
// internal/agent/providers/anthropic.go createStream/processStream pair:
// message_start carries input tokens, content_block_delta carries text,
// message_delta carries the final output token count.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	if len(req.Tools) > 0 {
		return nil, llm.ErrStreamingWithToolsUnsupported
	}

	model := p.defaultModel
	if req.Options.Model != "" {
		model = anthropic.Model(req.Options.Model)
	}
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: int64(maxTokensOrDefault(req.Options.MaxTokens)),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := extractSystem(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		var usage rcetypes.Usage
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				usage.InputTokens = int(event.AsMessageStart().Message.Usage.InputTokens)
			case "content_block_delta":
				if delta := event.AsContentBlockDelta().Delta; delta.Type == "text_delta" && delta.Text != "" {
					ch <- llm.StreamChunk{Text: delta.Text}
				}
			case "message_delta":
				if out := event.AsMessageDelta().Usage.OutputTokens; out > 0 {
					usage.OutputTokens = int(out)
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- llm.StreamChunk{Err: classifyError(err)}
			return
		}
		ch <- llm.StreamChunk{Usage: &usage}
	}()
	return ch, nil
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

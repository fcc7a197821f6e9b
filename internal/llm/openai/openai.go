// Package openai adapts github.com/sashabaranov/go-openai to the
// llm.Provider contract, grounded on the teacher's
// internal/agent/providers/openai.go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Provider wraps a go-openai client.
type Provider struct {
	client       *goopenai.Client
	defaultModel string
}

// New builds a Provider from an API key and default model id.
func New(apiKey, defaultModel string) *Provider {
	return &Provider{client: goopenai.NewClient(apiKey), defaultModel: defaultModel}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	model := p.defaultModel
	if req.Options.Model != "" {
		model = req.Options.Model
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Options.Temperature),
	}
	if req.Options.MaxTokens > 0 {
		creq.MaxTokens = req.Options.MaxTokens
	}
	if len(req.Options.StopSequences) > 0 {
		creq.Stop = req.Options.StopSequences
	}
	if len(req.Tools) > 0 {
		creq.Tools = toOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, &llm.AdapterError{Kind: llm.KindConnection, Detail: "openai returned no choices"}
	}

	choice := resp.Choices[0]
	out := llm.Response{
		Text: choice.Message.Content,
		Usage: rcetypes.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, rcetypes.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	if len(req.Tools) > 0 {
		return nil, llm.ErrStreamingWithToolsUnsupported
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       firstNonEmpty(req.Options.Model, p.defaultModel),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Options.Temperature),
		Stream:      true,
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, classifyError(err)
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()
		var usage rcetypes.Usage
		for {
			chunk, streamErr := stream.Recv()
			if errors.Is(streamErr, io.EOF) {
				ch <- llm.StreamChunk{Usage: &usage}
				return
			}
			if streamErr != nil {
				ch <- llm.StreamChunk{Err: classifyError(streamErr)}
				return
			}
			if len(chunk.Choices) > 0 {
				ch <- llm.StreamChunk{Text: chunk.Choices[0].Delta.Content}
			}
		}
	}()
	return ch, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &llm.AdapterError{Kind: llm.KindRateLimited, Detail: apiErr.Message, Cause: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &llm.AdapterError{Kind: llm.KindAuth, Detail: apiErr.Message, Cause: err}
		}
	}
	return &llm.AdapterError{Kind: llm.KindConnection, Detail: "openai request failed", Cause: err}
}

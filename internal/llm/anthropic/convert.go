package anthropic

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

func extractSystem(messages []rcetypes.Message) string {
	for _, m := range messages {
		if m.Role == rcetypes.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func toAnthropicMessages(messages []rcetypes.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case rcetypes.RoleSystem:
			continue // handled separately via params.System
		case rcetypes.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case rcetypes.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input interface{}
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case rcetypes.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out
}

func toAnthropicTools(descriptors []rcetypes.ToolDescriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(d.Parameters, &schema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return &llm.AdapterError{Kind: llm.KindRateLimited, Detail: apiErr.Error(), Cause: err}
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return &llm.AdapterError{Kind: llm.KindAuth, Detail: apiErr.Error(), Cause: err}
		}
	}
	if strings.Contains(err.Error(), "connection") {
		return &llm.AdapterError{Kind: llm.KindConnection, Detail: err.Error(), Cause: err}
	}
	return &llm.AdapterError{Kind: llm.KindConnection, Detail: "anthropic request failed", Cause: err}
}

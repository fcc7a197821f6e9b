package sandbox

import (
	"encoding/json"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

type executeParamsWire struct {
	Code             string                 `json:"code"`
	SessionID        string                 `json:"session_id"`
	Profile          string                 `json:"profile"`
	ContextOverrides map[string]interface{} `json:"context_overrides,omitempty"`
}

func decodeExecuteParams(raw json.RawMessage) (ExecuteParams, error) {
	var wire executeParamsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ExecuteParams{}, err
	}
	return ExecuteParams{
		Code:             wire.Code,
		SessionID:        wire.SessionID,
		Profile:          Profile(wire.Profile),
		ContextOverrides: wire.ContextOverrides,
	}, nil
}

func encodeInterpreterResult(result rcetypes.InterpreterResult) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

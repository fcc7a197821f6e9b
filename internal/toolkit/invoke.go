package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// PanicError wraps a recovered tool handler panic, mirroring the teacher's
// ErrToolPanic/ToolErrorPanic classification in internal/agent/errors.go.
type PanicError struct {
	ToolName string
	Value    interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("toolkit: tool %q panicked: %v", e.ToolName, e.Value)
}

// invokeSafely calls tool.Execute, recovering a handler panic into a
// PanicError so a single misbehaving tool can never crash the Orchestrator
// loop (spec §4.6.g: "exceptions in a handler are captured and returned as
// tool-result errors, never crashing the loop").
func invokeSafely(ctx context.Context, tool rcetypes.Tool, args json.RawMessage) (result *rcetypes.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{ToolName: tool.Name(), Value: r}
		}
	}()
	return tool.Execute(ctx, args)
}

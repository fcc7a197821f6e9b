// Package orchestrator implements the Recursive Completion Loop (spec
// §4.6) and the Sub-Completion Tools that re-enter it recursively (§4.7).
// Grounded on the teacher's internal/agent/loop.go (AgenticLoop.Run's
// init→stream→executeTools→continue state machine) and tool_exec.go's
// semaphore-bounded concurrent dispatch, rebuilt around budget checks
// instead of the teacher's approval/backpressure/job-queue machinery.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/basilisk-ai/rce/internal/budget"
	"github.com/basilisk-ai/rce/internal/llm"
	"github.com/basilisk-ai/rce/internal/obs"
	"github.com/basilisk-ai/rce/internal/toolkit"
	"github.com/basilisk-ai/rce/internal/trajectory"
	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// Options configures one Complete call, mirroring the configuration surface
// table in spec §6.
type Options struct {
	MaxDepth       int
	TokenBudget    int
	CostBudget     float64
	ToolBudget     int
	TimeoutSeconds int

	ParallelTools bool
	MaxParallel   int

	ResponseFormat *llm.ResponseFormat
	Model          string

	// ExtraTools are registered as per-call extras (spec §4.1), shadowing
	// the global registry. Sub-completion and terminal tools are injected
	// this way by the Agent Runner and by sub_complete itself.
	ExtraTools map[string]rcetypes.Tool

	// Ledger, when set, is used instead of constructing a fresh one from
	// the budget fields above — this is how a sub-completion receives its
	// derived budget (spec §4.6 "Recursion via sub-completion tools").
	Ledger *budget.Ledger

	// Depth is the recursion depth this completion runs at. 0 for a
	// top-level call.
	Depth int

	// ParentRecorder, when set, is reused instead of starting a fresh
	// trajectory.Recorder — this is how a sub-completion's events get
	// spliced live into the outer trajectory rather than recorded into a
	// trajectory of their own (spec §4.6).
	ParentRecorder *trajectory.Recorder

	// ParentCallID and SubCallType are stamped onto every event this
	// completion appends when ParentRecorder is set, linking the spliced
	// events back to the tool-call event that spawned them.
	ParentCallID string
	SubCallType  string
}

type contextKey int

const (
	recorderContextKey contextKey = iota
	parentCallIDContextKey
)

// withRecorder and recorderFromContext thread the active trajectory.Recorder
// through Dispatch into a tool's Execute without widening the rcetypes.Tool
// interface — sub_complete needs a handle on the recorder that is live
// inside the *current* Complete call, which does not exist yet at the time
// sub_complete itself is constructed and registered as an extra tool.
func withRecorder(ctx context.Context, rec *trajectory.Recorder) context.Context {
	return context.WithValue(ctx, recorderContextKey, rec)
}

func recorderFromContext(ctx context.Context) *trajectory.Recorder {
	rec, _ := ctx.Value(recorderContextKey).(*trajectory.Recorder)
	return rec
}

// withParentCallID and parentCallIDFromContext thread the call id of the
// turn currently being dispatched, so a sub-completion tool can tag its
// spliced-in events with the id of the call that spawned them.
func withParentCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, parentCallIDContextKey, callID)
}

func parentCallIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(parentCallIDContextKey).(string)
	return id
}

// Result is Complete's return value, per spec §4.6's public contract.
type Result struct {
	Response       string
	TrajectoryID   string
	TotalCalls     int
	TotalTokens    int
	TotalToolCalls int
	Duration       time.Duration
	TotalCost      float64
	Events         []trajectory.Event
	Violation      *budget.Violation // non-nil on abnormal termination
	Parsed         []byte
}

// Orchestrator drives completions against a Provider and a base tool
// Registry.
type Orchestrator struct {
	provider llm.Provider
	registry *toolkit.Registry
	sink     trajectory.Sink
	tracer   *obs.Tracer
	metrics  *Metrics
}

// New builds an Orchestrator with tracing and metrics disabled; use
// WithTracer/WithMetrics to enable them.
func New(provider llm.Provider, registry *toolkit.Registry, sink trajectory.Sink) *Orchestrator {
	return &Orchestrator{provider: provider, registry: registry, sink: sink}
}

// WithTracer attaches an OpenTelemetry tracer; every turn and every
// sub-completion recursion becomes a nested span (spec §9's otel
// integration note).
func (o *Orchestrator) WithTracer(t *obs.Tracer) *Orchestrator {
	o.tracer = t
	return o
}

// WithMetrics attaches the Prometheus turn counter and ledger gauges.
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Complete drives one completion to termination per the algorithm in spec
// §4.6. prompt and system seed the message list; the loop ends normally
// when the assistant returns no tool calls, or abnormally when the Budget
// Ledger reports a Violation.
func (o *Orchestrator) Complete(ctx context.Context, prompt, system string, opts Options) Result {
	start := time.Now()
	rec := opts.ParentRecorder
	if rec == nil {
		rec = trajectory.New(o.sink)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.complete", attribute.Int("depth", opts.Depth))
	defer span.End()
	ctx = withRecorder(ctx, rec)

	ledger := opts.Ledger
	if ledger == nil {
		deadline := time.Time{}
		if opts.TimeoutSeconds > 0 {
			deadline = start.Add(time.Duration(opts.TimeoutSeconds) * time.Second)
		}
		ledger = budget.New(budget.Limits{
			MaxDepth:  opts.MaxDepth,
			Tokens:    opts.TokenBudget,
			Cost:      opts.CostBudget,
			ToolCalls: opts.ToolBudget,
			Deadline:  deadline,
		})
		ledger.SetDepth(opts.Depth)
	}

	dispatcher := toolkit.NewDispatcher(o.registry, opts.ExtraTools)

	messages := []rcetypes.Message{}
	if system != "" {
		messages = append(messages, rcetypes.Message{Role: rcetypes.RoleSystem, Content: system})
	}
	messages = append(messages, rcetypes.Message{Role: rcetypes.RoleUser, Content: prompt})

	var lastResponse string
	var parsed []byte

	for {
		o.metrics.ObserveLedger(ledger)
		if v := ledger.Check(time.Now()); v != nil {
			obs.RecordError(span, v)
			return o.finish(rec, ledger, start, lastResponse, v, parsed)
		}

		turnCtx, turnSpan := o.tracer.Start(ctx, "orchestrator.turn", attribute.Int("depth", ledger.Depth()))
		o.metrics.CountTurn()

		turnStart := time.Now()
		req := llm.Request{
			Messages: messages,
			Tools:    dispatcher.Descriptors(),
			Options: llm.Options{
				Model:          opts.Model,
				ResponseFormat: opts.ResponseFormat,
			},
		}
		resp, err := o.provider.Complete(turnCtx, req)
		if err != nil {
			obs.RecordError(turnSpan, err)
			turnSpan.End()
			v := &budget.Violation{Kind: "adapter_error", Detail: err.Error()}
			obs.RecordError(span, v)
			return o.finish(rec, ledger, start, lastResponse, v, parsed)
		}
		turnSpan.End()

		ledger.Charge(resp.Usage.InputTokens, resp.Usage.OutputTokens, estimateCost(resp.Usage))
		lastResponse = resp.Text
		if resp.Parsed != nil {
			parsed = resp.Parsed
		}

		callID := rec.NewCallID()
		assistantMsg := rcetypes.Message{Role: rcetypes.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			o.appendEvent(rec, opts, trajectory.Event{
				CallID:       callID,
				Depth:        ledger.Depth(),
				ResponseText: resp.Text,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				Duration:     time.Since(turnStart),
				EstimatedCost: estimateCost(resp.Usage),
			})
			return o.finish(rec, ledger, start, lastResponse, nil, parsed)
		}

		for range resp.ToolCalls {
			ledger.ChargeToolCall()
		}
		if v := ledger.Check(time.Now()); v != nil {
			obs.RecordError(span, v)
			o.appendEvent(rec, opts, trajectory.Event{
				CallID: callID, Depth: ledger.Depth(), ResponseText: resp.Text,
				ToolCalls: resp.ToolCalls, InputTokens: resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens, Duration: time.Since(turnStart),
				EstimatedCost: estimateCost(resp.Usage),
			})
			return o.finish(rec, ledger, start, lastResponse, v, parsed)
		}

		dispatchCtx := withParentCallID(ctx, callID)
		results := o.dispatchAll(dispatchCtx, dispatcher, resp.ToolCalls, opts.ParallelTools, opts.MaxParallel)

		o.appendEvent(rec, opts, trajectory.Event{
			CallID:       callID,
			Depth:        ledger.Depth(),
			ResponseText: resp.Text,
			ToolCalls:    resp.ToolCalls,
			ToolResults:  results,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Duration:     time.Since(turnStart),
			EstimatedCost: estimateCost(resp.Usage),
		})

		for _, result := range results {
			messages = append(messages, rcetypes.Message{
				Role:       rcetypes.RoleTool,
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
			})
		}
	}
}

// dispatchAll runs the given tool calls either sequentially or, when
// parallel is requested and there is more than one call, concurrently under
// a semaphore sized by maxParallel (spec §4.6.g). Results are always
// reordered to match the LLM's original call order before being returned
// (spec §5).
func (o *Orchestrator) dispatchAll(ctx context.Context, d *toolkit.Dispatcher, calls []rcetypes.ToolCall, parallel bool, maxParallel int) []rcetypes.ToolResult {
	results := make([]rcetypes.ToolResult, len(calls))

	if !parallel || len(calls) <= 1 {
		for i, call := range calls {
			results[i] = *d.Dispatch(ctx, call)
		}
		return results
	}

	if maxParallel <= 0 {
		maxParallel = len(calls)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = *d.Dispatch(gctx, call)
			return nil
		})
	}
	_ = g.Wait() // Dispatch never returns an error itself; failures are tool-result errors.
	return results
}

// appendEvent stamps e with opts' sub-completion linkage, when present,
// before handing it to rec. ParentCallID/SubCallType are only ever non-empty
// when opts.ParentRecorder was set, i.e. this Complete call is itself a
// spliced-in sub-completion (spec §4.6).
func (o *Orchestrator) appendEvent(rec *trajectory.Recorder, opts Options, e trajectory.Event) {
	if opts.ParentRecorder != nil {
		e.ParentCallID = opts.ParentCallID
		e.SubCallType = opts.SubCallType
	}
	rec.Append(e)
}

func (o *Orchestrator) finish(rec *trajectory.Recorder, ledger *budget.Ledger, start time.Time, lastResponse string, violation *budget.Violation, parsed []byte) Result {
	events := rec.Events()
	return Result{
		Response:       lastResponse,
		TrajectoryID:   rec.TrajectoryID(),
		TotalCalls:     len(events),
		TotalTokens:    rec.TotalTokens(),
		TotalToolCalls: rec.TotalToolCalls(),
		Duration:       time.Since(start),
		TotalCost:      rec.TotalCost(),
		Events:         events,
		Violation:      violation,
		Parsed:         parsed,
	}
}

// estimateCost is a placeholder cost model (no live pricing table is part
// of the core per spec §1's external-collaborator carve-out for the LLM
// provider); callers that need real pricing should charge the ledger
// directly with their own figure instead of relying on this estimate.
func estimateCost(u rcetypes.Usage) float64 {
	const perThousandInput = 0.003
	const perThousandOutput = 0.015
	return float64(u.InputTokens)/1000*perThousandInput + float64(u.OutputTokens)/1000*perThousandOutput
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"prdigest/server/internal/middleware"
	"prdigest/server/internal/observability"
)

// DefaultMaxSteps bounds the generate/tool loop of one run.
const DefaultMaxSteps = 10

// ErrMaxSteps ends a run whose backend kept requesting tools.
var ErrMaxSteps = errors.New("step limit reached")

// RunInput is one chat turn.
type RunInput struct {
	Persona    *Persona
	Messages   []Message
	ThreadID   string
	ResourceID string
}

func (in RunInput) thread() Thread {
	t := Thread{ID: in.ThreadID, ResourceID: in.ResourceID}
	if in.Persona != nil {
		t.Persona = in.Persona.Name
	}
	return t
}

// RunResult describes a finished run.
type RunResult struct {
	Persona string
	// Text is the assistant text of the final step.
	Text        string
	Steps       int
	ToolResults []ToolResult
}

// Orchestrator runs personas against a backend.
type Orchestrator struct {
	backend      Backend
	memory       Store
	historyLimit int
	maxSteps     int
	logger       *zap.Logger
	tel          *observability.Telemetry
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMemory enables conversation memory; limit bounds the stored messages
// loaded into a run.
func WithMemory(store Store, limit int) Option {
	return func(o *Orchestrator) {
		o.memory = store
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTelemetry sets the tracer and instruments.
func WithTelemetry(t *observability.Telemetry) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tel = t
		}
	}
}

// NewOrchestrator creates an Orchestrator on top of backend.
func NewOrchestrator(backend Backend, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		backend:      backend,
		historyLimit: 10,
		maxSteps:     DefaultMaxSteps,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tel == nil {
		tel, err := observability.NewTelemetry(nil, nil)
		if err != nil {
			return nil, errors.Wrap(err, "telemetry")
		}
		o.tel = tel
	}
	return o, nil
}

// Run drives one chat turn: generate, forward text, execute requested tools
// one after another, feed the results back and repeat until a step requests
// no tools. Tool failures are handed back to the backend; only backend and
// sink failures, cancellation and the step limit end the run with an error.
func (o *Orchestrator) Run(ctx context.Context, in RunInput, sink Sink) (*RunResult, error) {
	if in.Persona == nil {
		return nil, errors.New("no persona")
	}
	p := in.Persona
	start := time.Now()
	logger := observability.FromContext(ctx, o.logger).With(zap.String("persona", p.Name))

	ctx, span := o.tel.Tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.persona", p.Name),
		attribute.String("agent.model", p.Model),
		attribute.Bool("agent.memory", o.useMemory(in)),
	))
	defer span.End()

	res, err := o.run(ctx, in, sink, logger)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	steps := 0
	if res != nil {
		steps = res.Steps
	}
	span.SetAttributes(attribute.Int("agent.steps", steps))
	attrs := metric.WithAttributes(attribute.String("persona", p.Name), attribute.String("status", status))
	o.tel.Runs.Add(ctx, 1, attrs)
	o.tel.Steps.Record(ctx, int64(steps), attrs)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	userID := ""
	if a := middleware.GetAuthContext(ctx); a != nil {
		userID = a.UserID
	}
	observability.LogAgentRun(middleware.GetRequestID(ctx), userID, p.Name, steps, time.Since(start).Milliseconds(), status, errMsg)

	if err != nil {
		logger.Warn("agent run failed", zap.Int("steps", steps), zap.Error(err))
		return res, err
	}
	logger.Info("agent run finished", zap.Int("steps", steps), zap.Int("tool_calls", len(res.ToolResults)))

	if p.Verify != nil {
		if verr := p.Verify(ctx, res); verr != nil {
			span.AddEvent("verify.failed", trace.WithAttributes(attribute.String("error", verr.Error())))
			logger.Warn("generated output failed verification", zap.Error(verr))
		}
	}
	return res, nil
}

func (o *Orchestrator) useMemory(in RunInput) bool {
	return o.memory != nil && in.ThreadID != ""
}

func (o *Orchestrator) run(ctx context.Context, in RunInput, sink Sink, logger *zap.Logger) (*RunResult, error) {
	p := in.Persona
	conv, newest, err := o.conversation(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &RunResult{Persona: p.Name}
	tools := p.toolSpecs()

	for step := 0; step < o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Steps = step + 1

		if err := sink.StepStart(); err != nil {
			return res, errors.Wrap(err, "sink")
		}

		text, calls, err := o.generate(ctx, Request{
			Model:    p.Model,
			System:   p.Instructions,
			Messages: conv,
			Tools:    tools,
		}, sink)
		if err != nil {
			return res, err
		}
		conv = append(conv, Message{Role: RoleAssistant, Text: text, ToolCalls: calls})

		if len(calls) == 0 {
			if err := sink.StepFinish(); err != nil {
				return res, errors.Wrap(err, "sink")
			}
			res.Text = text
			o.remember(ctx, in, newest, text, logger)
			return res, nil
		}

		for _, call := range calls {
			if err := sink.ToolInput(call); err != nil {
				return res, errors.Wrap(err, "sink")
			}
			tr := o.callTool(ctx, p, call)
			res.ToolResults = append(res.ToolResults, tr)
			if err := sink.ToolOutput(tr); err != nil {
				return res, errors.Wrap(err, "sink")
			}
			conv = append(conv, Message{Role: RoleTool, ToolResult: &tr})
		}

		if err := sink.StepFinish(); err != nil {
			return res, errors.Wrap(err, "sink")
		}
	}
	return res, errors.Wrapf(ErrMaxSteps, "after %d steps", o.maxSteps)
}

// conversation builds the message list of a run. With memory, it is the
// stored history followed by the newest user message of the input. History
// that no longer starts with a user turn after truncation is trimmed to the
// first user message.
func (o *Orchestrator) conversation(ctx context.Context, in RunInput) ([]Message, *Message, error) {
	idx := lastUser(in.Messages)
	var newest *Message
	if idx >= 0 {
		m := in.Messages[idx]
		newest = &m
	}

	if !o.useMemory(in) || newest == nil {
		return append([]Message(nil), in.Messages...), newest, nil
	}

	history, err := o.memory.History(ctx, in.thread(), o.historyLimit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load history")
	}
	history = dropLeadingNonUser(history)
	conv := make([]Message, 0, len(history)+1)
	conv = append(conv, history...)
	conv = append(conv, *newest)
	return conv, newest, nil
}

// remember stores the user message and the final answer. Failures are
// logged; the answer has already been streamed.
func (o *Orchestrator) remember(ctx context.Context, in RunInput, newest *Message, text string, logger *zap.Logger) {
	if !o.useMemory(in) || newest == nil {
		return
	}
	if err := o.memory.Append(ctx, in.thread(), *newest, Message{Role: RoleAssistant, Text: text}); err != nil {
		logger.Error("failed to store conversation", zap.String("thread_id", in.ThreadID), zap.Error(err))
	}
}

// generate consumes one step's stream, forwarding text as it arrives.
func (o *Orchestrator) generate(ctx context.Context, req Request, sink Sink) (string, []ToolCall, error) {
	stream, err := o.backend.Generate(ctx, req)
	if err != nil {
		return "", nil, errors.Wrap(err, "generate")
	}
	defer stream.Close()

	var (
		text  strings.Builder
		calls []ToolCall
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, errors.Wrap(err, "receive")
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if err := sink.TextDelta(chunk.Text); err != nil {
				return "", nil, errors.Wrap(err, "sink")
			}
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
	}
	return text.String(), calls, nil
}

// callTool executes one call. Every failure becomes an error result.
func (o *Orchestrator) callTool(ctx context.Context, p *Persona, call ToolCall) ToolResult {
	start := time.Now()
	ctx, span := o.tel.Tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	tr := ToolResult{CallID: call.ID, Name: call.Name}
	params, err := decodeArguments(call.Arguments)
	if err != nil {
		tr.IsError = true
		tr.Content = err.Error()
	} else {
		out := p.Tools.Run(ctx, call.Name, params)
		tr.Content = out.Text()
		tr.IsError = out.IsError
		tr.Structured = out.StructuredContent
	}

	status := "success"
	if tr.IsError {
		status = "error"
		span.SetStatus(codes.Error, tr.Content)
	}
	attrs := metric.WithAttributes(attribute.String("tool", call.Name), attribute.String("status", status))
	o.tel.ToolCalls.Add(ctx, 1, attrs)
	o.tel.ToolLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	return tr
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %v", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

package modules

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"prdigest/server/internal/middleware"
	"prdigest/server/internal/observability"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// =============================================================================
// Toolset
// =============================================================================

type toolEntry struct {
	module Module
	tool   Tool
}

// Toolset is an immutable set of tools keyed by name. Personas each hold
// their own Toolset, so there is no process-wide registry.
type Toolset struct {
	entries map[string]toolEntry
	order   []string
	timeout time.Duration
	logger  *zap.Logger
}

// ToolsetOption configures a Toolset.
type ToolsetOption func(*Toolset)

// WithTimeout overrides DefaultToolTimeout.
func WithTimeout(d time.Duration) ToolsetOption {
	return func(s *Toolset) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for tool call records.
func WithLogger(l *zap.Logger) ToolsetOption {
	return func(s *Toolset) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewToolset collects the tools of mods. Tool names must be unique across
// modules.
func NewToolset(mods []Module, opts ...ToolsetOption) (*Toolset, error) {
	s := &Toolset{
		entries: make(map[string]toolEntry),
		timeout: DefaultToolTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, m := range mods {
		for _, t := range m.Tools() {
			if prev, dup := s.entries[t.Name]; dup {
				return nil, errors.Errorf("tool %q declared by both %s and %s", t.Name, prev.module.Name(), m.Name())
			}
			s.entries[t.Name] = toolEntry{module: m, tool: t}
			s.order = append(s.order, t.Name)
		}
	}
	return s, nil
}

// Empty returns a Toolset without tools.
func Empty() *Toolset {
	s, _ := NewToolset(nil)
	return s
}

// Tools returns the tool descriptors in declaration order.
func (s *Toolset) Tools() []Tool {
	if s == nil {
		return nil
	}
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].tool)
	}
	return out
}

// Len reports the number of tools.
func (s *Toolset) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Lookup returns the descriptor of a tool.
func (s *Toolset) Lookup(name string) (Tool, bool) {
	if s == nil {
		return Tool{}, false
	}
	e, ok := s.entries[name]
	return e.tool, ok
}

// Names returns the tool names, sorted.
func (s *Toolset) Names() []string {
	if s == nil {
		return nil
	}
	names := slices.Clone(s.order)
	slices.Sort(names)
	return names
}

// =============================================================================
// Execution
// =============================================================================

// Run validates params against the tool's schema and executes it.
// Every failure (unknown tool, bad arguments, timeout, upstream error) comes
// back as a result with IsError set so the caller can hand it to the
// generation backend unchanged.
func (s *Toolset) Run(ctx context.Context, name string, params map[string]any) *ToolCallResult {
	start := time.Now()

	if s == nil {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
	e, ok := s.entries[name]
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
	moduleName := e.module.Name()

	if tool, found := findTool(e.module.Tools(), name); found {
		validated, err := ValidateParams(tool.InputSchema, params)
		if err != nil {
			s.record(ctx, moduleName, name, start, "rejected", err.Error())
			return errorResult(err.Error())
		}
		params = validated
	}

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := e.module.ExecuteTool(ctx, name, params)
	if err == nil && out == nil {
		err = errors.Errorf("tool %s returned no output", name)
	}
	if err != nil {
		errMsg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The external service did not respond in time.", moduleName, s.timeout)
		}
		s.record(ctx, moduleName, name, start, "error", errMsg)
		return errorResult(errMsg)
	}

	text := out.Text
	if f, _ := params["format"].(string); f == "markdown" && !out.Failed {
		text = s.ApplyCompact(name, text)
	}

	status := "success"
	if out.Failed {
		status = "failed"
	}
	s.record(ctx, moduleName, name, start, status, "")
	return &ToolCallResult{
		Content:           []ContentBlock{{Type: "text", Text: text}},
		StructuredContent: out.Structured,
		IsError:           out.Failed,
	}
}

// ApplyCompact converts a JSON result to the owning module's compact format.
// Returns the input unchanged when the module has no converter.
func (s *Toolset) ApplyCompact(toolName, jsonResult string) string {
	e, ok := s.entries[toolName]
	if !ok {
		return jsonResult
	}
	if converter, ok := e.module.(CompactConverter); ok {
		return converter.ToCompact(toolName, jsonResult)
	}
	return jsonResult
}

func (s *Toolset) record(ctx context.Context, moduleName, toolName string, start time.Time, status, errMsg string) {
	durationMs := time.Since(start).Milliseconds()
	requestID := middleware.GetRequestID(ctx)
	userID := ""
	if authCtx := middleware.GetAuthContext(ctx); authCtx != nil {
		userID = authCtx.UserID
	}

	fields := []zap.Field{
		zap.String("module", moduleName),
		zap.String("tool", toolName),
		zap.String("status", status),
		zap.Int64("duration_ms", durationMs),
	}
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	}
	observability.FromContext(ctx, s.logger).Info("tool call", fields...)
	observability.LogToolCall(requestID, userID, moduleName, toolName, durationMs, status, errMsg)
}

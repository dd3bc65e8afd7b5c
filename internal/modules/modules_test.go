package modules

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubModule struct {
	name  string
	tools []Tool
	calls atomic.Int32
	exec  func(ctx context.Context, name string, params map[string]any) (*ToolOutput, error)
}

func (m *stubModule) Name() string { return m.name }
func (m *stubModule) Description() string { return "stub" }
func (m *stubModule) Descriptions() LocalizedText { return LocalizedText{"en-US": "stub"} }
func (m *stubModule) APIVersion() string { return "test" }
func (m *stubModule) Tools() []Tool { return m.tools }
func (m *stubModule) ToCompact(tool, s string) string { return "compact:" + s }

func (m *stubModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (*ToolOutput, error) {
	m.calls.Add(1)
	return m.exec(ctx, name, params)
}

func echoTool(name string) Tool {
	return Tool{
		Name: name,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"pullNumber": {Type: "integer", Minimum: Int64(1)},
				"format":     {Type: "string"},
			},
			Required: []string{"pullNumber"},
		},
	}
}

func newStub(name string, tools ...Tool) *stubModule {
	return &stubModule{
		name:  name,
		tools: tools,
		exec: func(_ context.Context, _ string, params map[string]any) (*ToolOutput, error) {
			n, _ := IntParam(params, "pullNumber")
			return &ToolOutput{Text: `{"n":` + strings.Repeat("1", n) + `}`, Structured: n}, nil
		},
	}
}

func TestNewToolsetDuplicateNames(t *testing.T) {
	a := newStub("a", echoTool("x"))
	b := newStub("b", echoTool("x"))

	if _, err := NewToolset([]Module{a, b}); err == nil {
		t.Fatal("expected duplicate tool error")
	}
}

func TestToolsetTools(t *testing.T) {
	s, err := NewToolset([]Module{newStub("a", echoTool("second"), echoTool("first"))})
	if err != nil {
		t.Fatal(err)
	}

	tools := s.Tools()
	if len(tools) != 2 || tools[0].Name != "second" || tools[1].Name != "first" {
		t.Errorf("Tools() = %v, want declaration order", tools)
	}
	if got := s.Names(); got[0] != "first" {
		t.Errorf("Names() = %v, want sorted", got)
	}
	if _, ok := s.Lookup("first"); !ok {
		t.Error("Lookup(first) failed")
	}
	if Empty().Len() != 0 {
		t.Error("Empty() has tools")
	}
}

func TestToolsetRun(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		params    map[string]any
		wantError bool
		wantText  string
		wantCalls int32
	}{
		{"ok", "echo", map[string]any{"pullNumber": float64(2)}, false, `{"n":11}`, 1},
		{"markdown format", "echo", map[string]any{"pullNumber": float64(1), "format": "markdown"}, false, `compact:{"n":1}`, 1},
		{"unknown tool", "ghost", map[string]any{}, true, "Unknown tool: ghost", 0},
		{"missing required", "echo", map[string]any{}, true, "missing required parameter(s): pullNumber", 0},
		{"wrong type", "echo", map[string]any{"pullNumber": "7"}, true, `parameter "pullNumber": expected integer, got string`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStub("gh", echoTool("echo"))
			s, err := NewToolset([]Module{m})
			if err != nil {
				t.Fatal(err)
			}

			res := s.Run(context.Background(), tt.tool, tt.params)
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v (%s)", res.IsError, tt.wantError, res.Text())
			}
			if res.Text() != tt.wantText {
				t.Errorf("Text() = %q, want %q", res.Text(), tt.wantText)
			}
			if got := m.calls.Load(); got != tt.wantCalls {
				t.Errorf("ExecuteTool called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestToolsetRunFailedOutput(t *testing.T) {
	m := newStub("gh", echoTool("echo"))
	m.exec = func(context.Context, string, map[string]any) (*ToolOutput, error) {
		return &ToolOutput{Text: `{"success":false}`, Structured: "failure", Failed: true}, nil
	}
	s, _ := NewToolset([]Module{m})

	res := s.Run(context.Background(), "echo", map[string]any{"pullNumber": float64(1), "format": "markdown"})
	if !res.IsError {
		t.Error("expected IsError for failed output")
	}
	if res.Text() != `{"success":false}` {
		t.Errorf("failed output must not be compacted, got %q", res.Text())
	}
	if res.StructuredContent != "failure" {
		t.Errorf("StructuredContent = %v", res.StructuredContent)
	}
}

func TestToolsetRunTimeout(t *testing.T) {
	m := newStub("gh", echoTool("echo"))
	m.exec = func(ctx context.Context, _ string, _ map[string]any) (*ToolOutput, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s, _ := NewToolset([]Module{m}, WithTimeout(20*time.Millisecond))

	res := s.Run(context.Background(), "echo", map[string]any{"pullNumber": float64(1)})
	if !res.IsError {
		t.Fatal("expected timeout error result")
	}
	if !strings.Contains(res.Text(), "timed out after 20ms") {
		t.Errorf("Text() = %q", res.Text())
	}
}

func TestToolsetRunExecuteError(t *testing.T) {
	m := newStub("gh", echoTool("echo"))
	m.exec = func(context.Context, string, map[string]any) (*ToolOutput, error) {
		return nil, errors.New("boom")
	}
	s, _ := NewToolset([]Module{m})

	res := s.Run(context.Background(), "echo", map[string]any{"pullNumber": float64(1)})
	if !res.IsError || res.Text() != "boom" {
		t.Errorf("got %+v", res)
	}
}

func TestInputSchemaJSONSchema(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"hoursAgo": {Type: "number", Description: "Window", Default: float64(24), Minimum: Int64(1)},
			"date":     {Type: "string", Format: "date"},
		},
		Required: []string{"hoursAgo"},
	}

	got := schema.JSONSchema()
	props := got["properties"].(map[string]any)
	hours := props["hoursAgo"].(map[string]any)
	if hours["default"] != float64(24) || hours["minimum"] != int64(1) || hours["description"] != "Window" {
		t.Errorf("hoursAgo = %v", hours)
	}
	if props["date"].(map[string]any)["format"] != "date" {
		t.Errorf("date = %v", props["date"])
	}
	if req := got["required"].([]any); len(req) != 1 || req[0] != "hoursAgo" {
		t.Errorf("required = %v", got["required"])
	}
}

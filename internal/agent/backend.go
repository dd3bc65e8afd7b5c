package agent

import (
	"context"
)

// ToolSpec declares a tool to the backend.
type ToolSpec struct {
	Name        string
	Description string
	// Schema is a JSON Schema object describing the arguments.
	Schema map[string]any
}

// Request is one generation step.
type Request struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Chunk is one streamed piece of a step: either text or a complete tool call.
type Chunk struct {
	Text     string
	ToolCall *ToolCall
}

// Stream yields the chunks of one step. Recv returns io.EOF after the last
// chunk.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Backend is a text-generation service.
type Backend interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}

// Sink receives the visible progress of a run, in order. A returned error
// aborts the run.
type Sink interface {
	StepStart() error
	TextDelta(text string) error
	ToolInput(call ToolCall) error
	ToolOutput(result ToolResult) error
	StepFinish() error
}

// DiscardSink drops everything.
type DiscardSink struct{}

func (DiscardSink) StepStart() error { return nil }
func (DiscardSink) TextDelta(string) error { return nil }
func (DiscardSink) ToolInput(ToolCall) error { return nil }
func (DiscardSink) ToolOutput(ToolResult) error { return nil }
func (DiscardSink) StepFinish() error { return nil }

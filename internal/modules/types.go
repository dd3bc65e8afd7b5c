package modules

import "context"

// =============================================================================
// Localization
// =============================================================================

// LocalizedText holds multilingual text.
// key: BCP47 language code (en-US, ja-JP)
type LocalizedText map[string]string

// English returns the en-US entry.
func (t LocalizedText) English() string {
	return t["en-US"]
}

// =============================================================================
// Module Interface
// =============================================================================

// Module groups tools that talk to one upstream service.
type Module interface {
	// Metadata
	Name() string
	Description() string         // English description
	Descriptions() LocalizedText // Multilingual descriptions
	APIVersion() string

	// Tools - the generation backend decides when to call them
	Tools() []Tool
	ExecuteTool(ctx context.Context, name string, params map[string]any) (*ToolOutput, error)
}

// CompactConverter provides optional compact format conversion (Markdown).
// Modules that implement this can convert their JSON output to token-efficient formats
type CompactConverter interface {
	// ToCompact converts JSON result to compact format
	// toolName is used to select the appropriate format for each tool
	ToCompact(toolName string, jsonResult string) string
}

// ToolOutput is what a module hands back for one tool execution.
type ToolOutput struct {
	// Text is the serialized result placed into the conversation.
	Text string
	// Structured is the typed value behind Text, kept for in-process consumers.
	Structured any
	// Failed marks results that report a failure as data.
	Failed bool
}

// =============================================================================
// Tool Definition
// =============================================================================

// ToolAnnotations describes the tool's behavior hints.
type ToolAnnotations struct {
	ReadOnlyHint    *bool `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool `json:"openWorldHint,omitempty"`
}

// Helper to create *bool for annotation fields
func boolPtr(v bool) *bool { return &v }

// AnnotateReadOnly: list, get, search, query tools against data that changes
// over time (repeating a call is safe, results may differ).
var AnnotateReadOnly = &ToolAnnotations{
	ReadOnlyHint:   boolPtr(true),
	IdempotentHint: boolPtr(true),
	OpenWorldHint:  boolPtr(true),
}

// Tool represents a tool definition
type Tool struct {
	ID           string           `json:"id,omitempty"`           // Stable ID (e.g., "github:fetch-pr-details")
	Name         string           `json:"name"`                   // Execution key exposed to the backend
	Description  string           `json:"description"`            // Runtime description (after language selection)
	Descriptions LocalizedText    `json:"descriptions,omitempty"` // Multilingual descriptions (for export)
	InputSchema  InputSchema      `json:"inputSchema"`
	Annotations  *ToolAnnotations `json:"annotations,omitempty"`
}

// InputSchema defines the input parameters for a tool
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single property in the input schema
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Items       *Property `json:"items,omitempty"`
	Default     any       `json:"default,omitempty"`
	Minimum     *int64    `json:"minimum,omitempty"`
	Maximum     *int64    `json:"maximum,omitempty"`
	MinLength   *int      `json:"minLength,omitempty"`
	Format      string    `json:"format,omitempty"` // "date" = YYYY-MM-DD
}

// Int64 returns a pointer for Property.Minimum and Property.Maximum.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer for Property.MinLength.
func Int(v int) *int { return &v }

// JSONSchema renders the schema as a plain JSON Schema object, the shape
// generation backends expect for tool declarations.
func (s InputSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.jsonSchema()
	}
	out := map[string]any{
		"type":       s.Type,
		"properties": props,
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, r := range s.Required {
			required[i] = r
		}
		out["required"] = required
	}
	return out
}

func (p Property) jsonSchema() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.Items != nil {
		out["items"] = p.Items.jsonSchema()
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	if p.Minimum != nil {
		out["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		out["maximum"] = *p.Maximum
	}
	if p.MinLength != nil {
		out["minLength"] = *p.MinLength
	}
	if p.Format != "" {
		out["format"] = p.Format
	}
	return out
}

// =============================================================================
// Result Types
// =============================================================================

// ToolCallResult represents the result of a tool call
type ToolCallResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the result
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text joins all text blocks.
func (r *ToolCallResult) Text() string {
	if r == nil {
		return ""
	}
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}

func errorResult(msg string) *ToolCallResult {
	return &ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: msg}},
		IsError: true,
	}
}

package chat

import (
	"strings"

	"prdigest/server/internal/agent"
)

// Part is one UI message part. Only text parts carry conversation text.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message accepts both the UI message form (parts) and the plain form
// (content).
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Text returns the message text: content, else the text parts joined.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Request is the POST /api/chat body.
type Request struct {
	Messages   []Message `json:"messages" validate:"required,min=1,dive"`
	AgentName  string    `json:"agentName,omitempty" validate:"omitempty,max=64"`
	ThreadID   string    `json:"threadId,omitempty" validate:"omitempty,max=128"`
	ResourceID string    `json:"resourceId,omitempty" validate:"omitempty,max=128"`
}

func (r *Request) conversation() []agent.Message {
	out := make([]agent.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		text := m.Text()
		if text == "" {
			continue
		}
		out = append(out, agent.Message{Role: agent.Role(m.Role), Text: text})
	}
	return out
}

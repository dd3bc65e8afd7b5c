package memory

import (
	"time"

	"prdigest/server/internal/agent"
)

// --- Models ---

type Thread struct {
	ID         string `gorm:"primaryKey;type:text" json:"id"`
	ResourceID string `gorm:"type:text;index;not null;default:''" json:"resource_id"`
	Persona    string `gorm:"type:text;not null;default:''" json:"persona"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Thread) TableName() string { return "threads" }

func (t Thread) toAgent() agent.Thread {
	return agent.Thread{ID: t.ID, ResourceID: t.ResourceID, Persona: t.Persona}
}

type Message struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	ThreadID  string `gorm:"type:text;not null;uniqueIndex:idx_messages_thread_position,priority:1" json:"thread_id"`
	Position  int    `gorm:"not null;uniqueIndex:idx_messages_thread_position,priority:2" json:"position"`
	Role      string `gorm:"type:text;not null" json:"role"`
	Content   string `gorm:"type:text;not null;default:''" json:"content"`
	CreatedAt time.Time
}

func (Message) TableName() string { return "messages" }

func (m Message) toAgent() agent.Message {
	return agent.Message{Role: agent.Role(m.Role), Text: m.Content}
}

// storable reports whether a message is kept in memory. Only the visible
// conversation is: user and assistant text.
func storable(m agent.Message) bool {
	return (m.Role == agent.RoleUser || m.Role == agent.RoleAssistant) && m.Text != ""
}

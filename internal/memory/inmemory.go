// Package memory stores conversations between chat requests.
package memory

import (
	"context"
	"sync"

	"prdigest/server/internal/agent"
)

// InMemory keeps threads in process memory. It is lost on restart.
type InMemory struct {
	mu       sync.RWMutex
	threads  map[string]agent.Thread
	messages map[string][]agent.Message
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		threads:  make(map[string]agent.Thread),
		messages: make(map[string][]agent.Message),
	}
}

// History returns up to limit of the newest messages of a thread.
func (s *InMemory) History(_ context.Context, thread agent.Thread, limit int) ([]agent.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.threads[thread.ID]
	if !ok {
		return nil, nil
	}
	if err := agent.CheckOwner(stored, thread); err != nil {
		return nil, err
	}
	msgs := s.messages[thread.ID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]agent.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Append adds the user and assistant text messages of msgs to a thread.
func (s *InMemory) Append(_ context.Context, thread agent.Thread, msgs ...agent.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.threads[thread.ID]; ok {
		if err := agent.CheckOwner(stored, thread); err != nil {
			return err
		}
	} else {
		s.threads[thread.ID] = thread
	}
	for _, m := range msgs {
		if storable(m) {
			s.messages[thread.ID] = append(s.messages[thread.ID], agent.Message{Role: m.Role, Text: m.Text})
		}
	}
	return nil
}

// Thread returns a stored thread.
func (s *InMemory) Thread(_ context.Context, id string) (agent.Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	return t, ok
}

// HealthCheck always succeeds.
func (s *InMemory) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *InMemory) Close() {}

var _ agent.Store = (*InMemory)(nil)

// Package store holds the in-memory conversation history. Nothing here
// survives a restart.
package store

import (
	"sync"
	"time"

	"github.com/charlahq/charla/internal"
)

type MemoryStore struct {
	mu       sync.Mutex
	messages []internal.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make([]internal.Message, 0, 64)}
}

// All returns a copy of the history in order.
func (s *MemoryStore) All() []internal.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]internal.Message, len(s.messages))
	copy(cp, s.messages)
	return cp
}

func (s *MemoryStore) Append(msg internal.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = s.messages[:0]
}

// SeedAssistantHello puts an opening assistant message into the history.
func SeedAssistantHello(s *MemoryStore, text string) {
	s.Append(internal.Message{
		Role:      internal.RoleAssistant,
		Content:   text,
		CreatedAt: time.Now(),
	})
}

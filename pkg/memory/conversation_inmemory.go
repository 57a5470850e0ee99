// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryConversation implements ConversationStore in process memory.
// History is lost on restart; intended for tests and one-shot runs.
type InMemoryConversation struct {
	mu       sync.RWMutex
	sessions map[string][]ConversationMessage
}

// NewInMemoryConversation creates an empty in-memory conversation store.
func NewInMemoryConversation() *InMemoryConversation {
	return &InMemoryConversation{
		sessions: make(map[string][]ConversationMessage),
	}
}

// AppendMessage adds a message to the conversation.
func (s *InMemoryConversation) AppendMessage(_ context.Context, sessionID string, msg ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// Messages retrieves all messages for a session.
func (s *InMemoryConversation) Messages(_ context.Context, sessionID string) ([]ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	out := make([]ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// RecentMessages retrieves the last N messages for a session, in order.
func (s *InMemoryConversation) RecentMessages(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	msgs, err := s.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Clear removes all messages for a session.
func (s *InMemoryConversation) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ListSessions returns all known session IDs, sorted.
func (s *InMemoryConversation) ListSessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"time"
)

// ConversationMessage represents a single message in a conversation history.
type ConversationMessage struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	Role       string            `json:"role"` // system, user, assistant, tool
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ConversationStore persists ordered message sequences for multi-turn
// sessions. Unlike the vector-based Knowledge it keeps exact history.
type ConversationStore interface {
	// AppendMessage adds a message to the conversation.
	AppendMessage(ctx context.Context, sessionID string, msg ConversationMessage) error

	// Messages retrieves all messages for a session, ordered by creation time.
	Messages(ctx context.Context, sessionID string) ([]ConversationMessage, error)

	// RecentMessages retrieves the last N messages for a session, in order.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error)

	// Clear removes all messages for a session.
	Clear(ctx context.Context, sessionID string) error

	// ListSessions returns all known session IDs.
	ListSessions(ctx context.Context) ([]string, error)
}

// WindowStrategy keeps only the last N messages when loading history
// into a model context. System messages survive the window when
// KeepSystemMessages is set.
type WindowStrategy struct {
	MaxMessages        int
	KeepSystemMessages bool
}

// Truncate applies the window to the message list.
func (w *WindowStrategy) Truncate(messages []ConversationMessage) []ConversationMessage {
	if w.MaxMessages <= 0 || len(messages) <= w.MaxMessages {
		return messages
	}

	if !w.KeepSystemMessages {
		return messages[len(messages)-w.MaxMessages:]
	}

	var systemMsgs []ConversationMessage
	var otherMsgs []ConversationMessage
	for _, msg := range messages {
		if msg.Role == "system" {
			systemMsgs = append(systemMsgs, msg)
		} else {
			otherMsgs = append(otherMsgs, msg)
		}
	}

	available := w.MaxMessages - len(systemMsgs)
	if available < 0 {
		available = 0
	}
	if len(otherMsgs) > available {
		otherMsgs = otherMsgs[len(otherMsgs)-available:]
	}

	result := make([]ConversationMessage, 0, len(systemMsgs)+len(otherMsgs))
	result = append(result, systemMsgs...)
	result = append(result, otherMsgs...)
	return result
}

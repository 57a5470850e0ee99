// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func sanitizeTableName(table string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// SQLiteConversation implements ConversationStore with SQLite storage.
// A single local file survives restarts, which is all a CLI session
// history needs.
type SQLiteConversation struct {
	db    *sql.DB
	table string
}

// SQLiteConfig configures the SQLite conversation store.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" gives an ephemeral store.
	Path string
	// TableName is the table to use. Default: "conversation_messages".
	TableName string
}

// NewSQLiteConversation opens the database and prepares the schema.
func NewSQLiteConversation(ctx context.Context, cfg SQLiteConfig) (*SQLiteConversation, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	table := cfg.TableName
	if table == "" {
		table = "conversation_messages"
	}
	table, err := sanitizeTableName(table)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteConversation{db: db, table: table}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteConversation) initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_call_id TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_created ON %s (session_id, created_at, id);
	`, s.table, s.table, s.table)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// AppendMessage adds a message to the conversation.
func (s *SQLiteConversation) AppendMessage(ctx context.Context, sessionID string, msg ConversationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var metadataJSON []byte
	var err error
	if msg.Metadata != nil {
		metadataJSON, err = json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, role, content, tool_call_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		sessionID,
		msg.Role,
		msg.Content,
		sql.NullString{String: msg.ToolCallID, Valid: msg.ToolCallID != ""},
		metadataJSON,
		msg.CreatedAt,
	)
	return err
}

// Messages retrieves all messages for a session.
func (s *SQLiteConversation) Messages(ctx context.Context, sessionID string) ([]ConversationMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, tool_call_id, metadata, created_at
		FROM %s
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, s.table)

	return s.queryMessages(ctx, query, sessionID)
}

// RecentMessages retrieves the last N messages for a session, in order.
func (s *SQLiteConversation) RecentMessages(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, tool_call_id, metadata, created_at
		FROM (
			SELECT id, session_id, role, content, tool_call_id, metadata, created_at
			FROM %s
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`, s.table)

	return s.queryMessages(ctx, query, sessionID, limit)
}

// Clear removes all messages for a session.
func (s *SQLiteConversation) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, s.table)
	_, err := s.db.ExecContext(ctx, query, sessionID)
	return err
}

// ListSessions returns all known session IDs.
func (s *SQLiteConversation) ListSessions(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT session_id
		FROM %s
		ORDER BY session_id
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessions = append(sessions, sessionID)
	}
	return sessions, rows.Err()
}

func (s *SQLiteConversation) queryMessages(ctx context.Context, query string, args ...any) ([]ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ConversationMessage
	for rows.Next() {
		var msg ConversationMessage
		var toolCallID sql.NullString
		var metadataJSON []byte

		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&toolCallID,
			&metadataJSON,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if toolCallID.Valid {
			msg.ToolCallID = toolCallID.String
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				msg.Metadata = nil
			}
		}

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteConversation) Close() error {
	return s.db.Close()
}

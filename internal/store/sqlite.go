// ABOUTME: SQLite implementation of per-owner message storage using modernc.org/sqlite
// ABOUTME: Provides message persistence with automatic schema creation per owner database

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width RFC 3339 format. Zero-padded fractions keep
// lexicographic order identical to chronological order, which the
// composite index relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is an open connection to one owner's message database.
// Each owner gets its own database file; the connection pool owns the
// lifetime of these handles.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite store opened", "path", path)
	return s, nil
}

// createSchema creates the messages table and its composite index if absent.
// Idempotent - safe to run on every open.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_call_id TEXT,
			timestamp TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant', 'tool'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_timestamp
			ON messages(conversation_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendMessage inserts a message into a conversation. Structured tool
// content must already be serialized to text by the caller; it round-trips
// unchanged through History.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, role, content, toolCallID string, ts time.Time) error {
	query := `
		INSERT INTO messages (conversation_id, role, content, tool_call_id, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conversationID,
		role,
		content,
		nullString(toolCallID),
		ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("appended message", "conversation_id", conversationID, "role", role)
	return nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// History retrieves all messages for a conversation in timestamp order
// (oldest first), with a synthetic system message carrying systemPrompt
// prepended. The system message is never persisted.
func (s *SQLiteStore) History(ctx context.Context, conversationID, systemPrompt string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, tool_call_id, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{{
		ConversationID: conversationID,
		Role:           RoleSystem,
		Content:        systemPrompt,
	}}

	for rows.Next() {
		var msg Message
		var timestampStr string
		var toolCallID *string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &toolCallID, &timestampStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Timestamp, err = time.Parse(time.RFC3339Nano, timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}

		if toolCallID != nil {
			msg.ToolCallID = *toolCallID
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// ConversationExists reports whether any message exists for the given
// conversation identifier.
func (s *SQLiteStore) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	query := `SELECT 1 FROM messages WHERE conversation_id = ? LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying conversation existence: %w", err)
	}
	return true, nil
}

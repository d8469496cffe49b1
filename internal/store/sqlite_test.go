// ABOUTME: Tests for the per-owner SQLite message store
// ABOUTME: Validates ordering, system prompt injection, tool round-trips, and existence checks

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "owner.db")

	s, err := Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "hello", "", base))
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleAssistant, "hi there", "", base.Add(time.Second)))

	messages, err := s.History(ctx, "conv-1", "be helpful")
	require.NoError(t, err)
	require.Len(t, messages, 3)

	// System prompt is always first and synthetic
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, "be helpful", messages[0].Content)
	assert.Zero(t, messages[0].ID)

	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
	assert.Equal(t, RoleAssistant, messages[2].Role)
	assert.Equal(t, "hi there", messages[2].Content)
}

func TestStore_History_TimestampOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Insert out of order; retrieval must sort by timestamp ascending
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleAssistant, "third", "", base.Add(2*time.Second)))
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "first", "", base))
	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "second", "", base.Add(time.Second)))

	messages, err := s.History(ctx, "conv-1", "sys")
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.Equal(t, "first", messages[1].Content)
	assert.Equal(t, "second", messages[2].Content)
	assert.Equal(t, "third", messages[3].Content)

	for i := 2; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp),
			"messages must be in non-decreasing timestamp order")
	}
}

func TestStore_History_SystemPromptNeverPersisted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "hello", "", time.Now()))

	// Fetch twice with different prompts; stored rows are unaffected
	first, err := s.History(ctx, "conv-1", "prompt one")
	require.NoError(t, err)
	second, err := s.History(ctx, "conv-1", "prompt two")
	require.NoError(t, err)

	assert.Equal(t, "prompt one", first[0].Content)
	assert.Equal(t, "prompt two", second[0].Content)
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
}

func TestStore_History_IsolatesConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "conv-a", RoleUser, "for a", "", time.Now()))
	require.NoError(t, s.AppendMessage(ctx, "conv-b", RoleUser, "for b", "", time.Now()))

	messages, err := s.History(ctx, "conv-a", "sys")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "for a", messages[1].Content)
}

func TestStore_ToolContentRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	payload := map[string]any{
		"results": []any{
			map[string]any{"title": "Go", "url": "https://go.dev", "text": "The Go programming language"},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleTool, string(raw), "call_123", time.Now()))

	messages, err := s.History(ctx, "conv-1", "sys")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	tool := messages[1]
	assert.Equal(t, RoleTool, tool.Role)
	assert.Equal(t, "call_123", tool.ToolCallID, "tool message must carry its originating call id")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(tool.Content), &decoded))
	assert.Equal(t, payload, decoded)
}

func TestStore_ConversationExists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	exists, err := s.ConversationExists(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.AppendMessage(ctx, "conv-1", RoleUser, "hello", "", time.Now()))

	exists, err = s.ConversationExists(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_Open_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "owner.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendMessage(context.Background(), "conv-1", RoleUser, "hello", "", time.Now()))
}

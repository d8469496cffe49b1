// ABOUTME: Data types and role constants for per-owner message persistence
// ABOUTME: Defines the Message struct shared by the sqlite store and orchestrator

package store

import (
	"time"
)

// Role constants for message authorship
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message within a conversation.
// Tool messages always carry the ToolCallID of the call that produced them.
type Message struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	ToolCallID     string
	Timestamp      time.Time
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Capture source platforms
const (
	SourceChatGPT = "chatgpt"
	SourceClaude  = "claude"
	SourceGemini  = "gemini"
	SourceCopilot = "copilot"
	SourceOther   = "other"
)

// SourcePlatforms lists every recognized capture platform, in a stable order.
var SourcePlatforms = []string{SourceChatGPT, SourceClaude, SourceGemini, SourceCopilot, SourceOther}

// ValidRole reports whether role is one of the three message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// ValidSource reports whether source is a recognized capture platform.
func ValidSource(source string) bool {
	for _, s := range SourcePlatforms {
		if source == s {
			return true
		}
	}
	return false
}

// ConversationMessage is one turn in a captured chat. Immutable after capture.
type ConversationMessage struct {
	ID        string                 `bson:"id" json:"id"`
	Role      string                 `bson:"role" json:"role"` // "user", "assistant", "system"
	Content   string                 `bson:"content" json:"content"`
	Timestamp *time.Time             `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// ConversationMetadata carries optional capture context from the extension.
type ConversationMetadata struct {
	Model        string `bson:"model,omitempty" json:"model,omitempty"`
	MessageCount int    `bson:"messageCount,omitempty" json:"messageCount,omitempty"`
	TokenCount   int    `bson:"tokenCount,omitempty" json:"tokenCount,omitempty"`
	DurationMs   int64  `bson:"durationMs,omitempty" json:"durationMs,omitempty"`
}

// Conversation is a captured chat session. Message order is turn order and
// is preserved as stored; only re-capture and append mutate it.
type Conversation struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty" json:"-"`
	ConversationID string                `bson:"conversationId" json:"id"` // Extension-generated UUID
	UserID         string                `bson:"userId" json:"userId"`
	WorkspaceID    string                `bson:"workspaceId,omitempty" json:"workspaceId,omitempty"`
	Title          string                `bson:"title" json:"title"`
	Source         string                `bson:"source" json:"source"`
	SourceURL      string                `bson:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
	Messages       []ConversationMessage `bson:"messages" json:"messages"`
	Metadata       *ConversationMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
	PrivacyMode    string                `bson:"privacyMode" json:"privacyMode"` // "prompt_only" or "full_chat"
	Version        int64                 `bson:"version" json:"version"`         // Optimistic locking for re-capture
	CreatedAt      time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// CaptureRequest is the request body for capturing (or re-capturing) a conversation.
type CaptureRequest struct {
	ID          string                `json:"id"` // Extension-generated UUID
	Title       string                `json:"title"`
	Source      string                `json:"source"`
	SourceURL   string                `json:"sourceUrl,omitempty"`
	Messages    []ConversationMessage `json:"messages"`
	Metadata    *ConversationMetadata `json:"metadata,omitempty"`
	PrivacyMode string                `json:"privacyMode"`
	Version     int64                 `json:"version,omitempty"` // For optimistic locking on re-capture
}

// AppendMessagesRequest appends new turns to an existing conversation.
type AppendMessagesRequest struct {
	Messages []ConversationMessage `json:"messages"`
	Version  int64                 `json:"version"` // Required for optimistic locking
}

// ConversationListItem is a summary for listing conversations (no messages).
type ConversationListItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	MessageCount int       `json:"messageCount"`
	PrivacyMode  string    `json:"privacyMode"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConversationListResponse is the paginated response for listing conversations.
type ConversationListResponse struct {
	Conversations []ConversationListItem `json:"conversations"`
	TotalCount    int64                  `json:"totalCount"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"pageSize"`
	HasMore       bool                   `json:"hasMore"`
}

// ToListItem converts a Conversation to its listing summary.
func (c *Conversation) ToListItem() ConversationListItem {
	return ConversationListItem{
		ID:           c.ConversationID,
		Title:        c.Title,
		Source:       c.Source,
		MessageCount: len(c.Messages),
		PrivacyMode:  c.PrivacyMode,
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

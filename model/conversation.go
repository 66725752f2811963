package model

import "time"

// Conversation is an ordered exchange of messages within a notebook.
type Conversation struct {
	ID         string
	NotebookID string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewConversation creates an empty conversation.
func NewConversation(notebookID, title string) Conversation {
	now := Now()
	return Conversation{
		ID:         NewID(),
		NotebookID: notebookID,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn inside a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// NewMessage creates a message for a conversation.
func NewMessage(conversationID string, role MessageRole, content string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      Now(),
	}
}

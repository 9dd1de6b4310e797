package models

import (
	"time"
	"unicode/utf8"
)

const (
	DefaultTitle   = "New Conversation"
	maxTitleLength = 50
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User is the identity issued by the auth service. It is never persisted here.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleFromMessage derives a conversation title from the first message of a
// chat: the first 50 characters, with "..." appended when anything was cut.
func TitleFromMessage(msg string) string {
	if utf8.RuneCountInString(msg) <= maxTitleLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:maxTitleLength]) + "..."
}

// ResolveTitle picks the stored title for a new conversation.
func ResolveTitle(title, firstMessage string) string {
	if title != "" {
		return title
	}
	if firstMessage != "" {
		return TitleFromMessage(firstMessage)
	}
	return DefaultTitle
}

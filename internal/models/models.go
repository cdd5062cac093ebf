package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account created on first successful login with the external
// provider. Nickname is unset until the user picks one.
type User struct {
	ID        uuid.UUID `json:"id"`
	GoogleID  string    `json:"google_id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is either a named group chat or an unnamed private chat.
// IsGroupChat is immutable after creation and drives join semantics.
// LastMessageAt orders a user's chat list by recent activity; it stays
// nil until the first message arrives.
type Chat struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name,omitempty"`
	IsGroupChat   bool       `json:"is_group_chat"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// UserSummary is the member shape embedded in chat and message responses:
// just enough to render a name next to things.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname,omitempty"`
}

// ChatWithMembers is a chat enriched with member summaries.
type ChatWithMembers struct {
	Chat
	Users []UserSummary `json:"users"`
}

// ChatRef is the chat search-result shape: id and name only. The relevance
// score used for ranking never appears here.
type ChatRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Message is an immutable, append-only log entry. CreatedAt is the sole
// ordering and pagination key.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageWithAuthor is a message enriched with its author's summary.
type MessageWithAuthor struct {
	Message
	Author UserSummary `json:"author"`
}

package chatclient

import (
	"strings"
	"time"
)

// ReplyRef is the frozen snapshot of a quoted message, captured at send time.
// It deliberately holds copies rather than a reference so the quote still
// renders after the original message is cleared.
type ReplyRef struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SenderName string `json:"sender_name"`
}

// Message mirrors the chat API's message shape plus the client-only Status.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	SenderID       string    `json:"sender"`
	SenderName     string    `json:"sender_name,omitempty"`
	MessageType    string    `json:"message_type"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	ReplyingTo     *ReplyRef `json:"replying_to,omitempty"`

	Status Status `json:"-"`
}

// IsLocal reports whether this message is still an optimistic placeholder
// that the server has not confirmed.
func (m *Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, "temp-")
}

// Conversation mirrors the chat API's conversation shape.
type Conversation struct {
	ID                string    `json:"id"`
	ContractID        string    `json:"contract"`
	Participants      []string  `json:"participants"`
	ParticipantsNames []string  `json:"participants_names,omitempty"`
	UnreadCount       int64     `json:"unread_count"`
	LastMessage       *Message  `json:"last_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

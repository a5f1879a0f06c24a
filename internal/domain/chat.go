package domain

import (
	"time"
)

// MaxMessageLength bounds a chat message body in characters.
const MaxMessageLength = 2000

// Conversation is a direct-message thread between two users, optionally
// about a product. Each participant has its own unread counter.
type Conversation struct {
	ID            string     `json:"id"`
	ParticipantA  string     `json:"participant_a"`
	ParticipantB  string     `json:"participant_b"`
	ProductID     *string    `json:"product_id"`
	UnreadA       int        `json:"unread_a"`
	UnreadB       int        `json:"unread_b"`
	LastMessage   *string    `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// UnreadFor returns userID's unread counter.
func (c *Conversation) UnreadFor(userID string) int {
	if c.ParticipantA == userID {
		return c.UnreadA
	}
	if c.ParticipantB == userID {
		return c.UnreadB
	}
	return 0
}

// OrderedParticipants returns the pair in canonical order so a conversation
// between the same two users maps to a single row.
func OrderedParticipants(u1, u2 string) (string, string) {
	if u1 < u2 {
		return u1, u2
	}
	return u2, u1
}

// Message is a single chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

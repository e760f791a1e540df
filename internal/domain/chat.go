package domain

import "slices"

// A direct conversation between users.
// UnreadCount is relative to the user the chat was loaded for.
type Chat struct {
	ID               string
	Participants     []string
	ParticipantNames map[string]string
	LastMessage      string
	LastMessageAt    int64 // epoch milliseconds
	UnreadCount      int
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// A single chat message.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Content    string
	SentAt     int64 // epoch milliseconds
	IsRead     bool
}

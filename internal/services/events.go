package services

// Payload published under ports.EventPostCreated.
type PostCreatedEvent struct {
	PostID    string  `json:"post_id"`
	AuthorID  string  `json:"author_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	CreatedAt int64   `json:"created_at"`
}

// Payload published under ports.EventMessageSent.
type MessageSentEvent struct {
	ChatID     string   `json:"chat_id"`
	MessageID  string   `json:"message_id"`
	SenderID   string   `json:"sender_id"`
	Recipients []string `json:"recipients"`
	SentAt     int64    `json:"sent_at"`
}

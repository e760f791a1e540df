package dto

import "nearme-service/internal/domain"

type CreateChatRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type ChatResponse struct {
	ChatID           string            `json:"chat_id"`
	Participants     []string          `json:"participants"`
	ParticipantNames map[string]string `json:"participant_names"`
	LastMessage      string            `json:"last_message"`
	LastMessageAt    int64             `json:"last_message_at"`
	UnreadCount      int               `json:"unread_count"`
}

type ListChatResponse struct {
	Chats []ChatResponse `json:"chats"`
}

type MessageResponse struct {
	MessageID  string `json:"message_id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	SentAt     int64  `json:"sent_at"`
	IsRead     bool   `json:"is_read"`
}

type ListMessageResponse struct {
	Messages []MessageResponse `json:"messages"`
}

func NewChatResponse(c domain.Chat) ChatResponse {
	return ChatResponse{
		ChatID:           c.ID,
		Participants:     c.Participants,
		ParticipantNames: c.ParticipantNames,
		LastMessage:      c.LastMessage,
		LastMessageAt:    c.LastMessageAt,
		UnreadCount:      c.UnreadCount,
	}
}

func NewMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		MessageID:  m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		SentAt:     m.SentAt,
		IsRead:     m.IsRead,
	}
}

// Server -> client frame types on the live chat sockets.
const (
	ChatMsgChats    = "chats"
	ChatMsgMessages = "messages"
	ChatMsgError    = "error"
)

type ChatListMessage struct {
	Type  string         `json:"type"`
	Chats []ChatResponse `json:"chats"`
}

type MessageListMessage struct {
	Type     string            `json:"type"`
	ChatID   string            `json:"chat_id"`
	Messages []MessageResponse `json:"messages"`
}

type ChatErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewChatListMessage(chats []domain.Chat) ChatListMessage {
	res := ChatListMessage{Type: ChatMsgChats, Chats: make([]ChatResponse, 0, len(chats))}
	for _, c := range chats {
		res.Chats = append(res.Chats, NewChatResponse(c))
	}
	return res
}

func NewMessageListMessage(chatID string, msgs []domain.Message) MessageListMessage {
	res := MessageListMessage{Type: ChatMsgMessages, ChatID: chatID, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		res.Messages = append(res.Messages, NewMessageResponse(m))
	}
	return res
}

func NewChatError(msg string) ChatErrorMessage {
	return ChatErrorMessage{Type: ChatMsgError, Error: msg}
}

package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Port: a boundary for chats and their messages.
//
// Chats are always loaded for a viewer so that UnreadCount can be resolved.
type ChatRepository interface {
	// Persist a chat and its participants with zero unread messages.
	CreateChat(ctx context.Context, chat domain.Chat) error
	// Return domain.ErrNotFound when the chat does not exist.
	GetChat(ctx context.Context, chatID string, viewerID string) (*domain.Chat, error)
	// Return the chat shared by viewerID and otherID, or nil when there is none.
	FindChatBetween(ctx context.Context, viewerID string, otherID string) (*domain.Chat, error)
	// Return chats viewerID participates in, most recent activity first.
	ListUserChats(ctx context.Context, viewerID string) ([]domain.Chat, error)
	// Store a message, update the chat's last message and bump unread counts
	// of every participant except the sender.
	AppendMessage(ctx context.Context, msg domain.Message) error
	// Return the chat's messages, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]domain.Message, error)
	// Reset viewerID's unread count and mark messages from others as read.
	MarkRead(ctx context.Context, chatID string, viewerID string) error
}

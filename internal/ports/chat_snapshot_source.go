package ports

import (
	"context"
	"nearme-service/internal/domain"
)

// Receives the viewer's complete chat list or a subscription error.
type ChatListFunc func(chats []domain.Chat, err error)

// Receives every message of a chat, oldest first, or a subscription error.
type MessageListFunc func(msgs []domain.Message, err error)

// Port: live queries over a user's chats.
type ChatSnapshotSource interface {
	// Deliver the viewer's chats now and after every change to one of them.
	WatchUserChats(ctx context.Context, viewerID string, fn ChatListFunc) (Subscription, error)
	// Deliver chatID's messages now and after every change. The viewer must
	// take part in the chat.
	WatchMessages(ctx context.Context, viewerID, chatID string, fn MessageListFunc) (Subscription, error)
}

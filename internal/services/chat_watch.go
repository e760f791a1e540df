package services

import (
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/ports"
	"slices"

	"go.uber.org/zap"
)

// chatWatch is either a chat-list watch (onChats set) or a message watch on
// chatID (onMessages set).
type chatWatch struct {
	viewerID   string
	chatID     string
	onChats    ports.ChatListFunc
	onMessages ports.MessageListFunc
}

// WatchUserChats delivers viewerID's chats before returning and again after
// every message, new chat or read marker touching one of them. The
// subscription is also released when ctx is done.
func (s *ChatService) WatchUserChats(ctx context.Context, viewerID string, fn ports.ChatListFunc) (ports.Subscription, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	chats, err := s.chats.ListUserChats(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("watch chats: %w", err)
	}

	sub := s.addWatch(ctx, chatWatch{viewerID: viewerID, onChats: fn})
	fn(chats, nil)
	return sub, nil
}

// WatchMessages delivers chatID's messages before returning and again after
// every change. Outsiders get domain.ErrForbidden.
func (s *ChatService) WatchMessages(ctx context.Context, viewerID, chatID string, fn ports.MessageListFunc) (ports.Subscription, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if _, err := s.participantChat(ctx, viewerID, chatID); err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}

	sub := s.addWatch(ctx, chatWatch{viewerID: viewerID, chatID: chatID, onMessages: fn})
	fn(msgs, nil)
	return sub, nil
}

// Watchers returns the number of live chat subscriptions.
func (s *ChatService) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *ChatService) addWatch(ctx context.Context, w chatWatch) ports.Subscription {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	s.mu.Unlock()

	sub := ports.NewSubscription(func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	})
	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub
}

// notify reloads and delivers the chat lists of participants and, when
// messagesChanged is set, the message list of chatID.
func (s *ChatService) notify(ctx context.Context, chatID string, participants []string, messagesChanged bool) {
	// The write already succeeded; a cancelled request must not starve watchers.
	ctx = context.WithoutCancel(ctx)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	var lists, messages []chatWatch
	for _, w := range s.watchers {
		switch {
		case w.onChats != nil && slices.Contains(participants, w.viewerID):
			lists = append(lists, w)
		case w.onMessages != nil && messagesChanged && w.chatID == chatID:
			messages = append(messages, w)
		}
	}
	s.mu.Unlock()

	byViewer := make(map[string][]domain.Chat)
	for _, w := range lists {
		chats, ok := byViewer[w.viewerID]
		if !ok {
			var err error
			chats, err = s.chats.ListUserChats(ctx, w.viewerID)
			if err != nil {
				s.log.Warn("reload chats failed", zap.String("user_id", w.viewerID), zap.Error(err))
				w.onChats(nil, fmt.Errorf("reload chats: %w", err))
				continue
			}
			byViewer[w.viewerID] = chats
		}
		w.onChats(slices.Clone(chats), nil)
	}

	if len(messages) == 0 {
		return
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		s.log.Warn("reload messages failed", zap.String("chat_id", chatID), zap.Error(err))
		err = fmt.Errorf("reload messages: %w", err)
	}
	for _, w := range messages {
		if err != nil {
			w.onMessages(nil, err)
			continue
		}
		w.onMessages(slices.Clone(msgs), nil)
	}
}

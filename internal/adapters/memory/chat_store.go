package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"nearme-service/internal/domain"
	"slices"
	"sync"
)

type chatRecord struct {
	chat   domain.Chat
	unread map[string]int
}

func (r *chatRecord) viewFor(viewerID string) domain.Chat {
	c := r.chat
	c.Participants = slices.Clone(r.chat.Participants)
	c.ParticipantNames = maps.Clone(r.chat.ParticipantNames)
	c.UnreadCount = r.unread[viewerID]
	return c
}

type ChatStore struct {
	mu       sync.RWMutex
	chats    map[string]*chatRecord
	messages map[string][]domain.Message
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		chats:    make(map[string]*chatRecord),
		messages: make(map[string][]domain.Message),
	}
}

func (s *ChatStore) CreateChat(ctx context.Context, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chat.ID]; ok {
		return fmt.Errorf("memory chat store: create chat %q: %w: duplicate id", chat.ID, domain.ErrInvalidInput)
	}

	rec := &chatRecord{chat: chat, unread: make(map[string]int, len(chat.Participants))}
	rec.chat.Participants = slices.Clone(chat.Participants)
	rec.chat.ParticipantNames = maps.Clone(chat.ParticipantNames)
	rec.chat.UnreadCount = 0
	for _, id := range chat.Participants {
		rec.unread[id] = 0
	}
	s.chats[chat.ID] = rec
	return nil
}

func (s *ChatStore) GetChat(ctx context.Context, chatID string, viewerID string) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("memory chat store: get chat %q: %w", chatID, domain.ErrNotFound)
	}
	c := rec.viewFor(viewerID)
	return &c, nil
}

func (s *ChatStore) FindChatBetween(ctx context.Context, viewerID string, otherID string) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.chats {
		if rec.chat.HasParticipant(viewerID) && rec.chat.HasParticipant(otherID) {
			c := rec.viewFor(viewerID)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *ChatStore) ListUserChats(ctx context.Context, viewerID string) ([]domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Chat
	for _, rec := range s.chats {
		if rec.chat.HasParticipant(viewerID) {
			out = append(out, rec.viewFor(viewerID))
		}
	}
	slices.SortFunc(out, func(a, b domain.Chat) int {
		if c := cmp.Compare(b.LastMessageAt, a.LastMessageAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[msg.ChatID]
	if !ok {
		return fmt.Errorf("memory chat store: append message to %q: %w", msg.ChatID, domain.ErrNotFound)
	}

	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	rec.chat.LastMessage = msg.Content
	rec.chat.LastMessageAt = msg.SentAt
	for _, id := range rec.chat.Participants {
		if id != msg.SenderID {
			rec.unread[id]++
		}
	}
	return nil
}

func (s *ChatStore) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.messages[chatID])
	slices.SortStableFunc(out, func(a, b domain.Message) int {
		return cmp.Compare(a.SentAt, b.SentAt)
	})
	return out, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, chatID string, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("memory chat store: mark read %q: %w", chatID, domain.ErrNotFound)
	}

	rec.unread[viewerID] = 0
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != viewerID {
			msgs[i].IsRead = true
		}
	}
	return nil
}

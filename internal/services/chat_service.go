package services

import (
	"context"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
	"nearme-service/internal/ports"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxMessageLength = 1000

type ChatService struct {
	chats  ports.ChatRepository
	users  *UserService
	events ports.EventPublisher
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	watchers map[uint64]chatWatch
	nextID   uint64

	// Serializes snapshot delivery so a watcher never sees an older list
	// after a newer one.
	notifyMu sync.Mutex
}

func NewChatService(
	chats ports.ChatRepository,
	users *UserService,
	events ports.EventPublisher,
	log *zap.Logger,
) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		chats:    chats,
		users:    users,
		events:   events,
		log:      log,
		now:      time.Now,
		watchers: make(map[uint64]chatWatch),
	}
}

// CreateChat returns the chat between me and otherID, creating it when none
// exists. otherName overrides the stored display name of the other user.
func (s *ChatService) CreateChat(ctx context.Context, me, otherID, otherName string) (chat *domain.Chat, err error) {
	defer obs.Time(ctx, "chats.create")(&err)

	otherID = strings.TrimSpace(otherID)
	if otherID == "" || otherID == me {
		return nil, fmt.Errorf("create chat: %w: need another user", domain.ErrInvalidInput)
	}

	existing, err := s.chats.FindChatBetween(ctx, me, otherID)
	if err != nil {
		return nil, fmt.Errorf("create chat: find existing: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	myName, err := s.users.DisplayName(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	otherName = strings.TrimSpace(otherName)
	if otherName == "" {
		if otherName, err = s.users.DisplayName(ctx, otherID); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	}

	c := domain.Chat{
		ID:               uuid.NewString(),
		Participants:     []string{me, otherID},
		ParticipantNames: map[string]string{me: myName, otherID: otherName},
		LastMessageAt:    s.now().UnixMilli(),
	}
	if err := s.chats.CreateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	s.notify(ctx, c.ID, c.Participants, false)
	return &c, nil
}

// GetChatWithUser returns the chat between me and otherID or domain.ErrNotFound.
func (s *ChatService) GetChatWithUser(ctx context.Context, me, otherID string) (*domain.Chat, error) {
	c, err := s.chats.FindChatBetween(ctx, me, otherID)
	if err != nil {
		return nil, fmt.Errorf("get chat with user: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("get chat with user %q: %w", otherID, domain.ErrNotFound)
	}
	return c, nil
}

func (s *ChatService) ListChats(ctx context.Context, me string) (chats []domain.Chat, err error) {
	defer obs.Time(ctx, "chats.list")(&err)

	chats, err = s.chats.ListUserChats(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// SendMessage appends a message from me to chatID.
func (s *ChatService) SendMessage(ctx context.Context, me, chatID, content string) (msg *domain.Message, err error) {
	defer obs.Time(ctx, "chats.send_message")(&err)

	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("send message: %w: content must be 1..%d characters", domain.ErrInvalidInput, MaxMessageLength)
	}

	c, err := s.participantChat(ctx, me, chatID)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	senderName := c.ParticipantNames[me]
	if senderName == "" {
		if senderName, err = s.users.DisplayName(ctx, me); err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
	}

	m := domain.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   me,
		SenderName: senderName,
		Content:    content,
		SentAt:     s.now().UnixMilli(),
	}
	if err := s.chats.AppendMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	s.notify(ctx, chatID, c.Participants, true)

	recipients := make([]string, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id != me {
			recipients = append(recipients, id)
		}
	}
	evt := MessageSentEvent{
		ChatID:     chatID,
		MessageID:  m.ID,
		SenderID:   me,
		Recipients: recipients,
		SentAt:     m.SentAt,
	}
	if err := s.events.Publish(ctx, ports.EventMessageSent, evt); err != nil {
		s.log.Warn("publish message sent failed", zap.String("chat_id", chatID), zap.Error(err))
	}

	return &m, nil
}

// ListMessages returns the chat's messages, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, me, chatID string) (msgs []domain.Message, err error) {
	defer obs.Time(ctx, "chats.list_messages")(&err)

	if _, err := s.participantChat(ctx, me, chatID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs, err = s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead clears my unread count for chatID.
func (s *ChatService) MarkRead(ctx context.Context, me, chatID string) (err error) {
	defer obs.Time(ctx, "chats.mark_read")(&err)

	c, err := s.participantChat(ctx, me, chatID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if err := s.chats.MarkRead(ctx, chatID, me); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.notify(ctx, chatID, c.Participants, true)
	return nil
}

func (s *ChatService) participantChat(ctx context.Context, me, chatID string) (*domain.Chat, error) {
	c, err := s.chats.GetChat(ctx, chatID, me)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(me) {
		return nil, fmt.Errorf("chat %q: %w", chatID, domain.ErrForbidden)
	}
	return c, nil
}

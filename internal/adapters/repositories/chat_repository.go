package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
)

// Postgres-backed implementation of the ChatRepository port.
//
// Per-user state (display name at chat creation and unread count) lives in
// chat_participants.
type PostgresChatRepository struct{ DB *sql.DB }

func NewPostgresChatRepository(db *sql.DB) *PostgresChatRepository {
	return &PostgresChatRepository{DB: db}
}

func (r *PostgresChatRepository) CreateChat(ctx context.Context, chat domain.Chat) (err error) {
	defer obs.Time(ctx, "chats.pg.create")(&err)

	if len(chat.Participants) == 0 {
		return errors.New("create chat: participants must not be empty")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create chat: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO chats (chat_id, last_message, last_message_at_ms)
	VALUES ($1, $2, $3);
	`, chat.ID, chat.LastMessage, chat.LastMessageAt); err != nil {
		return fmt.Errorf("create chat %s: insert chat: %w", chat.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO chat_participants (chat_id, user_id, display_name, unread_count)
	VALUES ($1, $2, $3, 0);
	`)
	if err != nil {
		return fmt.Errorf("create chat %s: db prepare: %w", chat.ID, err)
	}
	defer stmt.Close()

	for _, userID := range chat.Participants {
		name := chat.ParticipantNames[userID]
		if name == "" {
			name = domain.AnonymousName
		}
		if _, err := stmt.ExecContext(ctx, chat.ID, userID, name); err != nil {
			return fmt.Errorf("create chat %s: insert participant %s: %w", chat.ID, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create chat %s: commit: %w", chat.ID, err)
	}
	return nil
}

func (r *PostgresChatRepository) GetChat(ctx context.Context, chatID string, viewerID string) (_ *domain.Chat, err error) {
	defer obs.Time(ctx, "chats.pg.get")(&err)

	var c domain.Chat
	err = r.DB.QueryRowContext(ctx, `
	SELECT chat_id, last_message, last_message_at_ms
	FROM chats
	WHERE chat_id = $1;
	`, chatID).Scan(&c.ID, &c.LastMessage, &c.LastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get chat %s: %w", chatID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: query chats table: %w", chatID, err)
	}

	if err := r.loadParticipants(ctx, &c, viewerID); err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return &c, nil
}

// Return the chat shared by viewerID and otherID, or nil when there is none.
func (r *PostgresChatRepository) FindChatBetween(ctx context.Context, viewerID string, otherID string) (_ *domain.Chat, err error) {
	defer obs.Time(ctx, "chats.pg.find_between")(&err)

	var chatID string
	err = r.DB.QueryRowContext(ctx, `
	SELECT me.chat_id
	FROM chat_participants me
	JOIN chat_participants other ON other.chat_id = me.chat_id
	WHERE me.user_id = $1 AND other.user_id = $2
	LIMIT 1;
	`, viewerID, otherID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chat between %s and %s: %w", viewerID, otherID, err)
	}

	return r.GetChat(ctx, chatID, viewerID)
}

// Return chats viewerID participates in, most recent activity first.
func (r *PostgresChatRepository) ListUserChats(ctx context.Context, viewerID string) (_ []domain.Chat, err error) {
	defer obs.Time(ctx, "chats.pg.list_user")(&err)

	rows, err := r.DB.QueryContext(ctx, `
	SELECT c.chat_id, c.last_message, c.last_message_at_ms
	FROM chats c
	JOIN chat_participants p ON p.chat_id = c.chat_id
	WHERE p.user_id = $1
	ORDER BY c.last_message_at_ms DESC, c.chat_id;
	`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list user chats: query chats table: %w", err)
	}

	chats := make([]domain.Chat, 0, 16)
	for rows.Next() {
		var c domain.Chat
		if err := rows.Scan(&c.ID, &c.LastMessage, &c.LastMessageAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list user chats: scan row: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list user chats: row iteration: %w", err)
	}
	rows.Close()

	for i := range chats {
		if err := r.loadParticipants(ctx, &chats[i], viewerID); err != nil {
			return nil, fmt.Errorf("list user chats: chat %s: %w", chats[i].ID, err)
		}
	}
	return chats, nil
}

func (r *PostgresChatRepository) loadParticipants(ctx context.Context, c *domain.Chat, viewerID string) error {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT user_id, display_name, unread_count
	FROM chat_participants
	WHERE chat_id = $1
	ORDER BY user_id;
	`, c.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	c.Participants = c.Participants[:0]
	c.ParticipantNames = make(map[string]string, 2)
	c.UnreadCount = 0
	for rows.Next() {
		var userID, name string
		var unread int
		if err := rows.Scan(&userID, &name, &unread); err != nil {
			return fmt.Errorf("load participants: scan row: %w", err)
		}
		c.Participants = append(c.Participants, userID)
		c.ParticipantNames[userID] = name
		if userID == viewerID {
			c.UnreadCount = unread
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load participants: row iteration: %w", err)
	}
	return nil
}

// Store msg, move the chat's last message forward and bump unread counts of
// everyone but the sender, in one transaction.
func (r *PostgresChatRepository) AppendMessage(ctx context.Context, msg domain.Message) (err error) {
	defer obs.Time(ctx, "chats.pg.append_message")(&err)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append message: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE chats
	SET last_message = $2, last_message_at_ms = $3
	WHERE chat_id = $1;
	`, msg.ChatID, msg.Content, msg.SentAt)
	if err != nil {
		return fmt.Errorf("append message: update chat %s: %w", msg.ChatID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("append message: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("append message: chat %s: %w", msg.ChatID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO messages (message_id, chat_id, sender_id, sender_name, content, sent_at_ms, is_read)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE);
	`, msg.ID, msg.ChatID, msg.SenderID, msg.SenderName, msg.Content, msg.SentAt); err != nil {
		return fmt.Errorf("append message: insert %s: %w", msg.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
	UPDATE chat_participants
	SET unread_count = unread_count + 1
	WHERE chat_id = $1 AND user_id <> $2;
	`, msg.ChatID, msg.SenderID); err != nil {
		return fmt.Errorf("append message: bump unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append message: commit: %w", err)
	}
	return nil
}

// Return the chat's messages, oldest first.
func (r *PostgresChatRepository) ListMessages(ctx context.Context, chatID string) (_ []domain.Message, err error) {
	defer obs.Time(ctx, "chats.pg.list_messages")(&err)

	rows, err := r.DB.QueryContext(ctx, `
	SELECT message_id, chat_id, sender_id, sender_name, content, sent_at_ms, is_read
	FROM messages
	WHERE chat_id = $1
	ORDER BY sent_at_ms, message_id;
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: query messages table: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0, 64)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Content, &m.SentAt, &m.IsRead); err != nil {
			return nil, fmt.Errorf("list messages: scan row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: row iteration: %w", err)
	}
	return msgs, nil
}

// Reset viewerID's unread count and mark messages from others as read.
func (r *PostgresChatRepository) MarkRead(ctx context.Context, chatID string, viewerID string) (err error) {
	defer obs.Time(ctx, "chats.pg.mark_read")(&err)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark read: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE chat_participants
	SET unread_count = 0
	WHERE chat_id = $1 AND user_id = $2;
	`, chatID, viewerID)
	if err != nil {
		return fmt.Errorf("mark read: reset unread: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark read: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("mark read: chat %s participant %s: %w", chatID, viewerID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
	UPDATE messages
	SET is_read = TRUE
	WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read;
	`, chatID, viewerID); err != nil {
		return fmt.Errorf("mark read: update messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark read: commit: %w", err)
	}
	return nil
}

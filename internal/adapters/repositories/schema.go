package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"os"
	"strings"
	"unicode/utf8"
)

// Channel notified whenever the posts table changes.
const PostsChangedChannel = "posts_changed"

// Initialize the Postgres database schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createUsersQuery := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		is_anonymous BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createPostsQuery := `
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		lat DOUBLE PRECISION NULL,
		lon DOUBLE PRECISION NULL,
		created_at_ms BIGINT NOT NULL,
		CHECK ((lat IS NULL) = (lon IS NULL))
	);
	`

	createPostsIndexesQuery := `
	CREATE INDEX IF NOT EXISTS idx_posts_created_at
	ON posts (created_at_ms DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_author_created_at
	ON posts (author_id, created_at_ms DESC);
	`

	createChatsQuery := `
	CREATE TABLE IF NOT EXISTS chats (
		chat_id TEXT PRIMARY KEY,
		last_message TEXT NOT NULL DEFAULT '',
		last_message_at_ms BIGINT NOT NULL
	);
	`

	createParticipantsQuery := `
	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL REFERENCES chats (chat_id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		unread_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (chat_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_participants_user
	ON chat_participants (user_id);
	`

	createMessagesQuery := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats (chat_id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		content TEXT NOT NULL,
		sent_at_ms BIGINT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_sent_at
	ON messages (chat_id, sent_at_ms);
	`

	createNotifyFunctionQuery := `
	CREATE OR REPLACE FUNCTION notify_posts_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + PostsChangedChannel + `', '');
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;
	`

	createNotifyTriggerQuery := `
	DROP TRIGGER IF EXISTS posts_changed ON posts;
	CREATE TRIGGER posts_changed
	AFTER INSERT OR UPDATE OR DELETE ON posts
	FOR EACH STATEMENT EXECUTE FUNCTION notify_posts_changed();
	`

	statements := []string{
		createUsersQuery,
		createPostsQuery,
		createPostsIndexesQuery,
		createChatsQuery,
		createParticipantsQuery,
		createMessagesQuery,
		createNotifyFunctionQuery,
		createNotifyTriggerQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type PostSeed struct {
	PostID     string   `json:"post_id"`
	Content    string   `json:"content"`
	AuthorID   string   `json:"author_id"`
	AuthorName string   `json:"author_name"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	CreatedAt  int64    `json:"created_at"`
}

// ParsePostSeeds reads and validates a JSON array of seed posts.
func ParsePostSeeds(jsonPath string) ([]domain.Post, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("seed posts: read %q: %w", jsonPath, err)
	}

	var data []PostSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("seed posts: parse json: %w", err)
	}

	posts := make([]domain.Post, 0, len(data))
	for i, item := range data {
		id := strings.TrimSpace(item.PostID)
		if id == "" {
			return nil, fmt.Errorf("seed posts: item at index %d: post_id cannot be empty", i+1)
		}

		content := strings.TrimSpace(item.Content)
		if content == "" || utf8.RuneCountInString(content) > 500 {
			return nil, fmt.Errorf("seed posts: post_id=%s: content must be 1..500 characters", id)
		}

		if (item.Lat == nil) != (item.Lon == nil) {
			return nil, fmt.Errorf("seed posts: post_id=%s: lat and lon must be set together", id)
		}

		var loc *domain.Coordinates
		if item.Lat != nil {
			loc = &domain.Coordinates{Lat: *item.Lat, Lon: *item.Lon}
			if !loc.Valid() {
				return nil, fmt.Errorf("seed posts: post_id=%s: location out of range", id)
			}
		}

		authorName := strings.TrimSpace(item.AuthorName)
		if authorName == "" {
			authorName = domain.AnonymousName
		}

		posts = append(posts, domain.Post{
			ID:         id,
			Content:    content,
			AuthorID:   strings.TrimSpace(item.AuthorID),
			AuthorName: authorName,
			Location:   loc,
			CreatedAt:  item.CreatedAt,
		})
	}

	return posts, nil
}

// Populate the posts table from a JSON file. Existing posts with the same id
// are replaced.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	posts, err := ParsePostSeeds(jsonPath)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed posts: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO posts (post_id, content, author_id, author_name, lat, lon, created_at_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (post_id) DO UPDATE
	SET content = EXCLUDED.content,
		author_id = EXCLUDED.author_id,
		author_name = EXCLUDED.author_name,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		created_at_ms = EXCLUDED.created_at_ms;
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("seed posts: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		lat, lon := nullCoordinates(p.Location)
		if _, err := stmt.ExecContext(ctx, p.ID, p.Content, p.AuthorID, p.AuthorName, lat, lon, p.CreatedAt); err != nil {
			return fmt.Errorf("seed posts: insert post_id=%s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed posts: commit tx: %w", err)
	}

	return nil
}

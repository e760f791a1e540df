package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
)

// Postgres-backed implementation of the PostRepository port.
type PostgresPostRepository struct{ DB *sql.DB }

func NewPostgresPostRepository(db *sql.DB) *PostgresPostRepository {
	return &PostgresPostRepository{DB: db}
}

const selectPostColumns = `
	SELECT post_id, content, author_id, author_name, lat, lon, created_at_ms
	FROM posts
`

func nullCoordinates(c *domain.Coordinates) (lat, lon sql.NullFloat64) {
	if c == nil {
		return lat, lon
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lon, Valid: true}
}

func (r *PostgresPostRepository) CreatePost(ctx context.Context, post domain.Post) (err error) {
	defer obs.Time(ctx, "posts.pg.create")(&err)

	if r.DB == nil {
		return errors.New("postgres post repository: DB is nil")
	}

	lat, lon := nullCoordinates(post.Location)
	query := `
	INSERT INTO posts (post_id, content, author_id, author_name, lat, lon, created_at_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if _, err := r.DB.ExecContext(ctx, query,
		post.ID, post.Content, post.AuthorID, post.AuthorName, lat, lon, post.CreatedAt,
	); err != nil {
		return fmt.Errorf("create post %s: insert: %w", post.ID, err)
	}

	return nil
}

// Return the newest posts first, at most limit of them.
func (r *PostgresPostRepository) ListRecentPosts(ctx context.Context, limit int) (_ []domain.Post, err error) {
	defer obs.Time(ctx, "posts.pg.list_recent")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres post repository: DB is nil")
	}
	if limit <= 0 {
		return []domain.Post{}, nil
	}

	query := selectPostColumns + `
	ORDER BY created_at_ms DESC, post_id
	LIMIT $1;
	`
	return r.queryPosts(ctx, "list recent posts", query, limit)
}

// Return all posts by authorID, newest first.
func (r *PostgresPostRepository) ListUserPosts(ctx context.Context, authorID string) (_ []domain.Post, err error) {
	defer obs.Time(ctx, "posts.pg.list_user")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres post repository: DB is nil")
	}

	query := selectPostColumns + `
	WHERE author_id = $1
	ORDER BY created_at_ms DESC, post_id;
	`
	return r.queryPosts(ctx, "list user posts", query, authorID)
}

func (r *PostgresPostRepository) queryPosts(ctx context.Context, op, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query posts table: %w", op, err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, 64)
	for rows.Next() {
		var p domain.Post
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Content, &p.AuthorID, &p.AuthorName, &lat, &lon, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		if lat.Valid && lon.Valid {
			p.Location = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}

	return posts, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
)

// Postgres-backed implementation of the UserRepository port.
type PostgresUserRepository struct{ DB *sql.DB }

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user domain.User) (err error) {
	defer obs.Time(ctx, "users.pg.create")(&err)

	query := `
	INSERT INTO users (user_id, display_name, is_anonymous, created_at)
	VALUES ($1, $2, $3, $4);
	`
	if _, err := r.DB.ExecContext(ctx, query, user.ID, user.DisplayName, user.Anonymous, user.CreatedAt); err != nil {
		return fmt.Errorf("create user %s: insert: %w", user.ID, err)
	}
	return nil
}

func (r *PostgresUserRepository) GetUser(ctx context.Context, userID string) (_ *domain.User, err error) {
	defer obs.Time(ctx, "users.pg.get")(&err)

	query := `
	SELECT user_id, display_name, is_anonymous, created_at
	FROM users
	WHERE user_id = $1;
	`
	var u domain.User
	err = r.DB.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.DisplayName, &u.Anonymous, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: query users table: %w", userID, err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) UpdateDisplayName(ctx context.Context, userID string, displayName string) (err error) {
	defer obs.Time(ctx, "users.pg.update_display_name")(&err)

	query := `
	UPDATE users
	SET display_name = $2
	WHERE user_id = $1;
	`
	res, err := r.DB.ExecContext(ctx, query, userID, displayName)
	if err != nil {
		return fmt.Errorf("update display name %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update display name %s: rows affected: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("update display name %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

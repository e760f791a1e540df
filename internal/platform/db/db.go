package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Pool settings applied to every Postgres handle.
const (
	MaxOpenConns    = 10
	MaxIdleConns    = 10
	ConnMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Open returns a pooled Postgres handle through the pgx database/sql driver.
// Callers must import github.com/jackc/pgx/v5/stdlib for its side effect.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetConnMaxLifetime(ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	zap.L().Info("connected to postgres",
		zap.Int("max_open_conns", MaxOpenConns),
		zap.Duration("conn_max_lifetime", ConnMaxLifetime),
	)
	return db, nil
}

package main

import (
	"context"
	"database/sql"
	"nearme-service/internal/adapters/repositories"
	"nearme-service/internal/config"
	"nearme-service/internal/platform/db"
	"nearme-service/internal/platform/logger"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// dbtool creates the Postgres schema and loads demo posts.
func main() {
	os.Exit(dbtool())
}

func dbtool() int {
	envErr := godotenv.Load()

	log, err := logger.New(config.Get("ENV", "development"), config.Get("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Info("no .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if databaseURL == "" {
		log.Error("DATABASE_URL is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Error("open database", zap.Error(err))
		return 1
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/posts.json")
	if err := initAndSeed(ctx, conn, seedPath, log); err != nil {
		log.Error("init and seed", zap.Error(err))
		return 1
	}
	return 0
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string, log *zap.Logger) error {
	log.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}
	log.Info("schema ready")

	log.Info("seeding database", zap.String("seed_path", seedPath))
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return err
	}
	log.Info("seeding complete")

	return nil
}

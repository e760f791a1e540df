package main

import (
	"context"
	"database/sql"
	"errors"
	"nearme-service/internal/adapters/cache"
	"nearme-service/internal/adapters/events"
	"nearme-service/internal/adapters/memory"
	"nearme-service/internal/adapters/repositories"
	"nearme-service/internal/api"
	"nearme-service/internal/config"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/auth"
	"nearme-service/internal/platform/db"
	"nearme-service/internal/platform/logger"
	"nearme-service/internal/ports"
	"nearme-service/internal/services"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type storage struct {
	users  ports.UserRepository
	posts  ports.PostRepository
	chats  ports.ChatRepository
	source ports.PostSnapshotSource

	// Set for postgres only.
	db      *sql.DB
	watcher *repositories.PostWatcher
}

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, RabbitMQ) behind ports and starts the HTTP server.
func main() {
	os.Exit(serve())
}

// serve returns the process exit code. os.Exit skips deferred calls, so the
// logger is flushed here rather than in main.
func serve() int {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// The logger depends on config; fall back to a bare one.
		zap.NewExample().Error("load config", zap.Error(err))
		return 1
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		zap.NewExample().Error("build logger", zap.Error(err))
		return 1
	}

	if envErr != nil {
		log.Info("no .env file found (using environment variables)")
	}

	return exitCode(log, run(cfg, log))
}

// exitCode logs a run failure and flushes log.
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	if store.db != nil {
		defer store.db.Close()
	}

	var locations ports.LocationStore = memory.NewLocationStore()
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		locations = cache.NewRedisLocationStore(client, cfg.LocationTTL)
		log.Info("observer locations stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set; observer locations kept in memory")
	}

	var publisher ports.EventPublisher = events.NopPublisher{Log: log}
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.DialRabbit(ctx, cfg.RabbitMQURL, cfg.EventsExchange, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := rabbit.Close(); err != nil {
				log.Warn("close rabbitmq", zap.Error(err))
			}
		}()
		publisher = rabbit
	} else {
		log.Warn("RABBITMQ_URL not set; domain events are dropped")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	users := services.NewUserService(store.users)
	posts := services.NewPostService(store.posts, users, publisher, services.PostServiceConfig{
		FeedLimit:    cfg.FeedLimit,
		RateInterval: cfg.PostRateInterval,
		RateBurst:    cfg.PostRateBurst,
	}, log.Named("posts"))
	chats := services.NewChatService(store.chats, users, publisher, log.Named("chats"))

	router := api.NewRouter(api.Deps{
		Users:     users,
		Posts:     posts,
		Chats:     chats,
		Source:    store.source,
		Locations: locations,
		Issuer:    issuer,
		RadiusKm:  cfg.FeedRadiusKm,
		FeedLimit: cfg.FeedLimit,
		Log:       log.Named("feed"),
	})

	// WriteTimeout stays zero: live feed connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if store.watcher != nil {
		g.Go(func() error {
			return store.watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (*storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		var seed []domain.Post
		if cfg.SeedPath != "" {
			posts, err := repositories.ParsePostSeeds(cfg.SeedPath)
			if err != nil {
				return nil, err
			}
			seed = posts
		}
		postStore := memory.NewPostStore(seed...)
		log.Warn("using in-memory storage; data is lost on restart", zap.Int("seed_posts", len(seed)))
		return &storage{
			users:  memory.NewUserStore(),
			posts:  postStore,
			chats:  memory.NewChatStore(),
			source: postStore,
		}, nil

	default:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repositories.InitSchema(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if cfg.SeedPath != "" {
			if err := repositories.SeedFromJSON(ctx, conn, cfg.SeedPath); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}

		postRepo := repositories.NewPostgresPostRepository(conn)
		watcher := repositories.NewPostWatcher(cfg.DatabaseURL, postRepo, log.Named("post_watcher"))
		return &storage{
			users:   repositories.NewPostgresUserRepository(conn),
			posts:   postRepo,
			chats:   repositories.NewPostgresChatRepository(conn),
			source:  watcher,
			db:      conn,
			watcher: watcher,
		}, nil
	}
}

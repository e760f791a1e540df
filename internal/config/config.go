package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	Storage     string
	DatabaseURL string
	SeedPath    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LocationTTL   time.Duration

	RabbitMQURL    string
	EventsExchange string

	JWTSecret string
	TokenTTL  time.Duration

	FeedRadiusKm float64
	FeedLimit    int

	PostRateInterval time.Duration
	PostRateBurst    int
}

// Get returns the environment variable for key or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Load reads the service configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:           Get("PORT", "8080"),
		Env:            Get("ENV", "production"),
		LogLevel:       Get("LOG_LEVEL", "info"),
		Storage:        strings.ToLower(Get("STORAGE", StoragePostgres)),
		DatabaseURL:    Get("DATABASE_URL", ""),
		SeedPath:       Get("SEED_PATH", ""),
		RedisAddr:      Get("REDIS_ADDR", ""),
		RedisPassword:  Get("REDIS_PASSWORD", ""),
		RabbitMQURL:    Get("RABBITMQ_URL", ""),
		EventsExchange: Get("EVENTS_EXCHANGE", "nearme.events"),
		JWTSecret:      Get("JWT_SECRET", ""),
	}

	var err error
	if cfg.RedisDB, err = GetInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.LocationTTL, err = GetDuration("LOCATION_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = GetDuration("TOKEN_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.FeedRadiusKm, err = GetFloat("FEED_RADIUS_KM", 50); err != nil {
		return Config{}, err
	}
	if cfg.FeedLimit, err = GetInt("FEED_LIMIT", 100); err != nil {
		return Config{}, err
	}
	if cfg.PostRateInterval, err = GetDuration("POST_RATE_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PostRateBurst, err = GetInt("POST_RATE_BURST", 3); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.FeedRadiusKm <= 0 {
		return fmt.Errorf("config: FEED_RADIUS_KM must be positive")
	}
	if c.FeedLimit <= 0 || c.FeedLimit > 100 {
		return fmt.Errorf("config: FEED_LIMIT must be in 1..100")
	}
	if c.PostRateBurst <= 0 {
		return fmt.Errorf("config: POST_RATE_BURST must be positive")
	}
	return nil
}

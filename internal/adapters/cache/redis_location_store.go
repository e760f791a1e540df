package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"nearme-service/internal/domain"
	"nearme-service/internal/platform/obs"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	observerKeyPrefix  = "observer:"
	DefaultLocationTTL = time.Hour
)

type storedFix struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	At             time.Time `json:"at"`
}

// RedisLocationStore keeps the last observer fix per user.
//
// Each fix is stored as JSON under observer:<user id> with a TTL, so a user
// who stops reporting drops out on its own.
type RedisLocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocationStore(client *redis.Client, ttl time.Duration) *RedisLocationStore {
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	return &RedisLocationStore{client: client, ttl: ttl}
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func observerKey(userID string) string {
	return observerKeyPrefix + userID
}

func (s *RedisLocationStore) SetObserverLocation(ctx context.Context, userID string, fix domain.LocationFix) (err error) {
	defer obs.Time(ctx, "locations.redis.set")(&err)

	if userID == "" {
		return errors.New("set observer location: user id must not be empty")
	}

	data, err := json.Marshal(storedFix{
		Lat:            fix.Lat,
		Lon:            fix.Lon,
		AccuracyMeters: fix.AccuracyMeters,
		At:             fix.At,
	})
	if err != nil {
		return fmt.Errorf("set observer location: marshal: %w", err)
	}

	if err := s.client.Set(ctx, observerKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set observer location %q: %w", userID, err)
	}

	return nil
}

func (s *RedisLocationStore) GetObserverLocation(ctx context.Context, userID string) (_ *domain.LocationFix, err error) {
	defer obs.Time(ctx, "locations.redis.get")(&err)

	data, err := s.client.Get(ctx, observerKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get observer location %q: %w", userID, err)
	}

	var f storedFix
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("get observer location %q: unmarshal: %w", userID, err)
	}

	return &domain.LocationFix{
		Coordinates:    domain.Coordinates{Lat: f.Lat, Lon: f.Lon},
		AccuracyMeters: f.AccuracyMeters,
		At:             f.At,
	}, nil
}

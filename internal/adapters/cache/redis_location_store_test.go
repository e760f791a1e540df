package cache

import (
	"context"
	"nearme-service/internal/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisLocationStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocationStore(client, ttl), mr
}

func TestRedisLocationStoreRoundTrip(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fix := domain.LocationFix{
		Coordinates:    domain.Coordinates{Lat: 37.7749, Lon: -122.4194},
		AccuracyMeters: 12,
		At:             at,
	}
	if err := s.SetObserverLocation(ctx, "u1", fix); err != nil {
		t.Fatalf("SetObserverLocation: %v", err)
	}

	got, err := s.GetObserverLocation(ctx, "u1")
	if err != nil {
		t.Fatalf("GetObserverLocation: %v", err)
	}
	if got == nil {
		t.Fatalf("GetObserverLocation = nil, want fix")
	}
	if got.Lat != fix.Lat || got.Lon != fix.Lon || got.AccuracyMeters != 12 || !got.At.Equal(at) {
		t.Fatalf("fix = %+v, want %+v", got, fix)
	}

	if ttl := mr.TTL("observer:u1"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want %v", ttl, time.Minute)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "observer:u1" {
		t.Fatalf("keys = %v, want only observer:u1", keys)
	}
}

func TestRedisLocationStorePolarFix(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	for _, lat := range []float64{88, 90, -90} {
		fix := domain.LocationFix{Coordinates: domain.Coordinates{Lat: lat, Lon: 10}}
		if err := s.SetObserverLocation(ctx, "u1", fix); err != nil {
			t.Fatalf("SetObserverLocation(lat=%v): %v", lat, err)
		}

		got, err := s.GetObserverLocation(ctx, "u1")
		if err != nil {
			t.Fatalf("GetObserverLocation: %v", err)
		}
		if got == nil || got.Lat != lat || got.Lon != 10 {
			t.Fatalf("fix = %+v, want lat %v lon 10", got, lat)
		}
	}
}

func TestRedisLocationStoreMissing(t *testing.T) {
	s, _ := newTestStore(t, 0)

	got, err := s.GetObserverLocation(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetObserverLocation: %v", err)
	}
	if got != nil {
		t.Fatalf("GetObserverLocation = %+v, want nil", got)
	}
}

func TestRedisLocationStoreExpires(t *testing.T) {
	s, mr := newTestStore(t, time.Second)
	ctx := context.Background()

	_ = s.SetObserverLocation(ctx, "u1", domain.LocationFix{Coordinates: domain.Coordinates{Lat: 1, Lon: 1}})
	mr.FastForward(2 * time.Second)

	got, err := s.GetObserverLocation(ctx, "u1")
	if err != nil {
		t.Fatalf("GetObserverLocation: %v", err)
	}
	if got != nil {
		t.Fatalf("GetObserverLocation after expiry = %+v, want nil", got)
	}
}

func TestRedisLocationStoreRejectsEmptyUser(t *testing.T) {
	s, _ := newTestStore(t, 0)

	if err := s.SetObserverLocation(context.Background(), "", domain.LocationFix{}); err == nil {
		t.Fatalf("SetObserverLocation: expected error")
	}
}

package settings

import (
	"context"
	"testing"
	"time"

	"aegis-guardian/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type countingStore struct {
	calls int
	err   error
}

func (s *countingStore) GetGuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, error) {
	s.calls++
	if s.err != nil {
		return storage.GuildConfig{}, s.err
	}
	return storage.GuildConfig{GuildID: guildID, BannedWords: []string{"bad"}}, nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	store := &countingStore{}
	clock := &fakeClock{now: time.Now()}
	cache := NewCache(store, 5*time.Minute)
	cache.WithClock(clock)

	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected 1 store call, got %d", store.calls)
	}

	clock.now = clock.now.Add(5*time.Minute + time.Second)
	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 store calls after expiry, got %d", store.calls)
	}
}

func TestCacheFetchFailureNotCached(t *testing.T) {
	store := &countingStore{err: context.DeadlineExceeded}
	cache := NewCache(store, 5*time.Minute)

	if _, err := cache.Get(context.Background(), "g1"); err == nil {
		t.Fatalf("expected error")
	}

	store.err = nil
	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected failed fetch to stay uncached, got %d calls", store.calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	store := &countingStore{}
	cache := NewCache(store, 5*time.Minute)

	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	cache.Invalidate("g1")
	if _, err := cache.Get(context.Background(), "g1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", store.calls)
	}
}

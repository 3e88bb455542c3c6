package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aegis-guardian/internal/storage"
)

// ConfigStore is the slice of the store the cache needs.
type ConfigStore interface {
	GetGuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	config    storage.GuildConfig
	expiresAt time.Time
}

// Cache is a time-bounded cache of guild moderation settings. Entries
// past their TTL are treated as absent and refetched synchronously on
// the next access; there is no background refresh and no eviction
// beyond TTL.
type Cache struct {
	mu      sync.Mutex
	store   ConfigStore
	ttl     time.Duration
	clock   Clock
	entries map[string]entry
	hits    prometheus.Counter
	misses  prometheus.Counter
}

func NewCache(store ConfigStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		clock:   realClock{},
		entries: make(map[string]entry),
	}
}

func (c *Cache) WithClock(clock Clock) {
	c.clock = clock
}

// WithCounters attaches hit/miss counters. Optional; a cache without
// counters simply does not report.
func (c *Cache) WithCounters(hits, misses prometheus.Counter) {
	c.hits = hits
	c.misses = misses
}

// Get returns the guild's config, fetching from the store on miss or
// expiry. A failed fetch propagates the error and leaves the cache
// unpopulated.
func (c *Cache) Get(ctx context.Context, guildID string) (storage.GuildConfig, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if item, ok := c.entries[guildID]; ok && now.Before(item.expiresAt) {
		c.mu.Unlock()
		if c.hits != nil {
			c.hits.Inc()
		}
		return item.config, nil
	}
	c.mu.Unlock()
	if c.misses != nil {
		c.misses.Inc()
	}

	config, err := c.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		return storage.GuildConfig{}, fmt.Errorf("fetch guild config: %w", err)
	}

	c.mu.Lock()
	c.entries[guildID] = entry{config: config, expiresAt: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
	return config, nil
}

// Invalidate drops a guild's cached entry. Settings writers call this
// after updates, but readers must tolerate the staleness window anyway.
func (c *Cache) Invalidate(guildID string) {
	c.mu.Lock()
	delete(c.entries, guildID)
	c.mu.Unlock()
}

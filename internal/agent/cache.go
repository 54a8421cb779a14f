package agent

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"solana-agent-sim/internal/observability"
	"solana-agent-sim/internal/storage"
)

const (
	// DefaultMaxSize bounds the number of live instances held at once.
	DefaultMaxSize = 200

	// DefaultTTL is how long an instance may sit idle before eviction.
	DefaultTTL = 30 * time.Minute

	// evictionHighWater is the occupancy fraction above which an LRU pass
	// runs in addition to the TTL sweep.
	evictionHighWater = 0.9

	// evictionFraction is the share of capacity an LRU pass removes.
	evictionFraction = 0.2
)

// cacheEntry pairs a live instance with its last access time.
type cacheEntry struct {
	agent      Agent
	lastAccess time.Time
}

// CacheOptions configures Cache.
type CacheOptions struct {
	Participants storage.ParticipantStore
	Factory      Factory
	MaxSize      int
	TTL          time.Duration
	Verbose      bool
}

// Cache is the bounded holder of live participant instances. Instances are
// constructed lazily on first access and evicted by idle TTL, or by LRU when
// occupancy crosses the high-water mark. Construction happens under the cache
// lock so concurrent misses for one participant never build two instances.
type Cache struct {
	participants storage.ParticipantStore
	factory      Factory
	maxSize      int
	ttl          time.Duration
	verbose      bool

	mu      sync.Mutex
	entries map[string]*cacheEntry

	now func() time.Time
}

// NewCache creates a bounded instance cache.
func NewCache(opts CacheOptions) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Cache{
		participants: opts.Participants,
		factory:      opts.Factory,
		maxSize:      opts.MaxSize,
		ttl:          opts.TTL,
		verbose:      opts.Verbose,
		entries:      make(map[string]*cacheEntry),
		now:          time.Now,
	}
}

// Get returns the live instance for a participant, constructing it on a miss.
// A hit refreshes the entry's last access time. On a miss with the cache
// full, eviction runs first so the insert never exceeds the bound.
func (c *Cache) Get(ctx context.Context, participantID string) (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[participantID]; ok {
		entry.lastAccess = c.now()
		return entry.agent, nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictLocked(ctx)
		if len(c.entries) >= c.maxSize {
			// TTL and LRU freed nothing; force out the single oldest.
			c.removeOldestLocked(ctx, 1)
		}
	}

	observability.RecordCacheMiss()

	participant, err := c.participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", participantID, err)
	}

	instance, err := c.factory(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("construct instance for %s: %w", participantID, err)
	}

	c.entries[participantID] = &cacheEntry{agent: instance, lastAccess: c.now()}
	observability.UpdateCacheResident(len(c.entries))
	return instance, nil
}

// Evict runs one eviction pass and returns how many instances were removed.
func (c *Cache) Evict(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(ctx)
}

// evictLocked removes idle-expired entries, then trims the oldest fifth of
// capacity when occupancy is above the high-water mark. Caller holds mu.
func (c *Cache) evictLocked(ctx context.Context) int {
	removed := 0
	cutoff := c.now().Add(-c.ttl)

	for id, entry := range c.entries {
		if entry.lastAccess.Before(cutoff) {
			c.closeEntry(ctx, id, entry)
			removed++
		}
	}

	if float64(len(c.entries)) > float64(c.maxSize)*evictionHighWater {
		count := int(float64(c.maxSize) * evictionFraction)
		if count < 1 {
			count = 1
		}
		removed += c.removeOldestLocked(ctx, count)
	}

	if removed > 0 {
		observability.RecordCacheEvictions(removed)
		observability.UpdateCacheResident(len(c.entries))
		if c.verbose {
			log.Printf("[agent-cache] evicted %d instances, %d resident", removed, len(c.entries))
		}
	}
	return removed
}

// removeOldestLocked evicts up to count entries, oldest access first.
func (c *Cache) removeOldestLocked(ctx context.Context, count int) int {
	type aged struct {
		id         string
		lastAccess time.Time
	}

	order := make([]aged, 0, len(c.entries))
	for id, entry := range c.entries {
		order = append(order, aged{id: id, lastAccess: entry.lastAccess})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].lastAccess.Before(order[j].lastAccess)
	})

	if count > len(order) {
		count = len(order)
	}
	for _, victim := range order[:count] {
		c.closeEntry(ctx, victim.id, c.entries[victim.id])
	}
	return count
}

// closeEntry drops the entry and releases its instance. Close failures are
// logged, not returned: the entry is gone either way.
func (c *Cache) closeEntry(ctx context.Context, id string, entry *cacheEntry) {
	delete(c.entries, id)
	if err := entry.agent.Close(ctx); err != nil {
		log.Printf("[agent-cache] close instance %s: %v", id, err)
	}
}

// StartSweeper runs periodic eviction until the context is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Evict(ctx)
			}
		}
	}()
}

// DrainAll closes and removes every resident instance. Used at shutdown.
func (c *Cache) DrainAll(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	drained := len(c.entries)
	for id, entry := range c.entries {
		c.closeEntry(ctx, id, entry)
	}
	observability.UpdateCacheResident(0)
	if drained > 0 && c.verbose {
		log.Printf("[agent-cache] drained %d instances", drained)
	}
	return drained
}

// Len returns the current number of resident instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Package convcache holds opaque per-(conversation, model) inference state so
// follow-up turns skip recomputation. Entries are bounded by a TTL and a
// global entry cap; a background loop enforces both. The cache has its own
// lock so reads and writes never wait on model loading.
package convcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding constructor arguments are unset.
const (
	DefaultMaxEntries      = 100
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = time.Minute
)

type key struct {
	conversationID string
	modelID        string
}

type entry struct {
	blob      []byte
	createdAt time.Time
	lastUsed  time.Time
}

// Cache is a bounded, TTL'd store of conversation state blobs.
type Cache struct {
	mu      sync.Mutex
	entries map[key]*entry

	maxEntries      int
	ttl             time.Duration
	cleanupInterval time.Duration

	log   zerolog.Logger
	nowFn func() time.Time
}

// New constructs a cache. Non-positive arguments fall back to package defaults.
func New(maxEntries int, ttl, cleanupInterval time.Duration, log zerolog.Logger) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Cache{
		entries:         make(map[key]*entry),
		maxEntries:      maxEntries,
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		log:             log,
		nowFn:           time.Now,
	}
}

// Get returns the cached blob for the pair, refreshing its recency. The
// second return is false on a miss; a miss is a normal outcome, not an error.
func (c *Cache) Get(conversationID, modelID string) ([]byte, bool) {
	k := key{conversationID: conversationID, modelID: modelID}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		metricMisses.Inc()
		return nil, false
	}
	e.lastUsed = c.nowFn()
	metricHits.Inc()
	return e.blob, true
}

// Put stores a blob for the pair, creating the entry if absent and refreshing
// last_used either way.
func (c *Cache) Put(conversationID, modelID string, blob []byte) {
	k := key{conversationID: conversationID, modelID: modelID}
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		e.blob = blob
		e.lastUsed = now
		return
	}
	c.entries[k] = &entry{blob: blob, createdAt: now, lastUsed: now}
	metricEntries.Set(float64(len(c.entries)))
}

// InvalidateModel drops every entry for the model and returns the count
// removed. Called when a model is unloaded so stale state never seeds a
// fresh instance.
func (c *Cache) InvalidateModel(modelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if k.modelID == modelID {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		metricEntries.Set(float64(len(c.entries)))
		metricEvictions.WithLabelValues("invalidated").Add(float64(removed))
	}
	return removed
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run executes the cleanup loop until ctx is canceled. Each pass is isolated;
// a panic is logged and the loop continues on the next tick.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupTick()
		}
	}
}

func (c *Cache) cleanupTick() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Any("panic", r).Msg("cache cleanup panicked")
		}
	}()
	ttl, lru := c.cleanupOnce()
	if ttl > 0 || lru > 0 {
		c.log.Debug().Int("ttl_expired", ttl).Int("lru_evicted", lru).Msg("conversation cache cleanup")
	}
}

// cleanupOnce runs a TTL pass then a capacity pass and reports how many
// entries each removed. After it returns the entry count is at most maxEntries.
func (c *Cache) cleanupOnce() (ttlExpired, lruEvicted int) {
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if now.Sub(e.lastUsed) > c.ttl {
			delete(c.entries, k)
			ttlExpired++
		}
	}

	if excess := len(c.entries) - c.maxEntries; excess > 0 {
		type aged struct {
			k        key
			lastUsed time.Time
		}
		all := make([]aged, 0, len(c.entries))
		for k, e := range c.entries {
			all = append(all, aged{k: k, lastUsed: e.lastUsed})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].lastUsed.Before(all[j].lastUsed) })
		for _, a := range all[:excess] {
			delete(c.entries, a.k)
			lruEvicted++
		}
	}

	metricEntries.Set(float64(len(c.entries)))
	if ttlExpired > 0 {
		metricEvictions.WithLabelValues("ttl").Add(float64(ttlExpired))
	}
	if lruEvicted > 0 {
		metricEvictions.WithLabelValues("capacity").Add(float64(lruEvicted))
	}
	return ttlExpired, lruEvicted
}

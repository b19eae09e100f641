package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
)

// cacheItem is one stored analysis result. The payload is kept encoded so
// callers always decode a private copy.
type cacheItem struct {
	Payload  []byte
	StoredAt time.Time
	Seq      uint64
	URL      string
}

// MemoryCache is a thread-safe in-memory result cache with a fixed TTL and a
// bounded entry count.
type MemoryCache struct {
	data       map[domain.ProductIdentity]cacheItem
	mutex      sync.RWMutex
	ttl        time.Duration
	maxEntries int
	seq        uint64
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
	logger     *zap.SugaredLogger
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(ttl time.Duration, maxEntries int, logger *zap.SugaredLogger) *MemoryCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MemoryCache{
		data:       make(map[domain.ProductIdentity]cacheItem),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger,
	}
}

// Get retrieves a result from the cache. Expired entries are removed.
func (c *MemoryCache) Get(ctx context.Context, identity domain.ProductIdentity) (*domain.AnalysisResult, error) {
	c.mutex.RLock()
	item, exists := c.data[identity]
	c.mutex.RUnlock()

	if !exists {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	if !c.valid(item, c.now()) {
		c.mutex.Lock()
		// re-check: a concurrent Put may have replaced the entry
		if current, ok := c.data[identity]; ok && current.Seq == item.Seq {
			delete(c.data, identity)
		}
		c.mutex.Unlock()
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(item.Payload, &result); err != nil {
		return nil, errors.Wrapf(err, "decode cached result %s", identity)
	}

	c.hits.Add(1)
	c.logger.Debugw("cache hit", logger.FieldIdentity, identity)
	return &result, nil
}

// Put stores a result, evicting expired and then oldest entries when the
// store is full.
func (c *MemoryCache) Put(ctx context.Context, identity domain.ProductIdentity, productURL string, result *domain.AnalysisResult) error {
	if result == nil {
		return errors.New("cannot cache nil result")
	}

	// Serialize to JSON so stored values never alias caller memory
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encode result")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if _, exists := c.data[identity]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.sweepLocked(now)
		c.evictOldestLocked(len(c.data) - c.maxEntries + 1)
	}

	c.seq++
	c.data[identity] = cacheItem{
		Payload:  payload,
		StoredAt: now,
		Seq:      c.seq,
		URL:      productURL,
	}

	c.logger.Debugw("cached result", logger.FieldIdentity, identity, "size", len(c.data))
	return nil
}

// Stats sweeps expired entries and reports the remaining membership in
// insertion order.
func (c *MemoryCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.sweepLocked(c.now())

	identities := make([]string, 0, len(c.data))
	for _, id := range c.orderedLocked() {
		identities = append(identities, string(id))
	}

	return domain.CacheStats{
		Size:       len(c.data),
		Identities: identities,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}, nil
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[domain.ProductIdentity]cacheItem)
	c.logger.Infow("cache cleared")
	return nil
}

// Size returns the current number of items in the cache, expired or not
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// StartJanitor removes expired entries every interval until ctx is done.
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mutex.Lock()
				removed := c.sweepLocked(c.now())
				c.mutex.Unlock()
				if removed > 0 {
					c.logger.Debugw("janitor swept expired entries", "count", removed)
				}
			}
		}
	}()
}

func (c *MemoryCache) valid(item cacheItem, now time.Time) bool {
	return now.Sub(item.StoredAt) < c.ttl
}

func (c *MemoryCache) sweepLocked(now time.Time) int {
	removed := 0
	for id, item := range c.data {
		if !c.valid(item, now) {
			delete(c.data, id)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) evictOldestLocked(n int) {
	if n <= 0 {
		return
	}
	ordered := c.orderedLocked()
	if n > len(ordered) {
		n = len(ordered)
	}
	for _, id := range ordered[:n] {
		delete(c.data, id)
	}
	c.logger.Debugw("evicted oldest entries", "count", n)
}

// orderedLocked returns identities oldest first, ties broken by insertion order
func (c *MemoryCache) orderedLocked() []domain.ProductIdentity {
	ids := make([]domain.ProductIdentity, 0, len(c.data))
	for id := range c.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.data[ids[i]], c.data[ids[j]]
		if !a.StoredAt.Equal(b.StoredAt) {
			return a.StoredAt.Before(b.StoredAt)
		}
		return a.Seq < b.Seq
	})
	return ids
}

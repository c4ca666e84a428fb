package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/ports"
)

type localEntry struct {
	value     string
	expiresAt time.Time
}

func (e localEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// LocalCache is the single-instance fallback used when redis.url is empty.
// Login nonces, revoked tokens, rate limit counters and idempotency records
// then live only in this process.
type LocalCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	log      *zap.Logger
}

var _ ports.Cache = (*LocalCache)(nil)

// NewLocalCache starts a janitor that drops expired keys every sweep.
func NewLocalCache(sweep time.Duration, log *zap.Logger) *LocalCache {
	if sweep <= 0 {
		sweep = time.Minute
	}
	c := &LocalCache{
		entries: make(map[string]localEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
		log:     log,
	}
	go c.janitor(sweep)

	log.Info("Local in-memory cache initialized", zap.Duration("sweep", sweep))
	return c
}

func (c *LocalCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.live(c.now()) {
		return "", ports.ErrCacheMiss
	}
	return e.value, nil
}

func (c *LocalCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	e, err := c.entry(value, expiration)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	e, err := c.entry(value, expiration)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && cur.live(c.now()) {
		return false, nil
	}
	c.entries[key] = e
	return true, nil
}

func (c *LocalCache) entry(value interface{}, expiration time.Duration) (localEntry, error) {
	s, err := encode(value)
	if err != nil {
		return localEntry{}, err
	}
	e := localEntry{value: s}
	if expiration > 0 {
		e.expiresAt = c.now().Add(expiration)
	}
	return e, nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) Ping() error { return nil }

func (c *LocalCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *LocalCache) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug("Cache sweep removed expired keys", zap.Int("removed", n))
			}
		case <-c.stop:
			return
		}
	}
}

func (c *LocalCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

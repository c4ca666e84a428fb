package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

// RateLimit limits requests per client over cfg.Window. With ByAccount set,
// authenticated callers are counted per account instead of per IP. Counters
// live in storage so every replica shares them when it is Redis-backed.
func RateLimit(cfg config.RateLimitingConfig, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.MaxRequests,
		Expiration: cfg.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if cfg.ByAccount {
				if p := PrincipalFrom(c); p != nil {
					return "ratelimit:account:" + strings.ToLower(p.Account.Hex())
				}
			}
			return "ratelimit:ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		},
		Storage: storage,
	})
}

// CacheStorage exposes a ports.Cache as fiber.Storage for fiber middlewares.
type CacheStorage struct {
	cache   ports.Cache
	timeout time.Duration
}

var _ fiber.Storage = (*CacheStorage)(nil)

func NewCacheStorage(cache ports.Cache) *CacheStorage {
	return &CacheStorage{cache: cache, timeout: 2 * time.Second}
}

func (s *CacheStorage) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.cache.Get(ctx, key)
	if errors.Is(err, ports.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (s *CacheStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.cache.Set(ctx, key, val, exp)
}

func (s *CacheStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.cache.Delete(ctx, key)
}

// Reset is not supported: the cache is shared with other users.
func (s *CacheStorage) Reset() error {
	return nil
}

// Close leaves the cache open; its owner closes it.
func (s *CacheStorage) Close() error {
	return nil
}

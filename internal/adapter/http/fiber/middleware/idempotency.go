package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
	idempotencyLockTTL      = 30 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response of a write that was already
// processed under the same Idempotency-Key. Keys are scoped to the caller and
// route, so one caller can never receive another caller's response. Handler
// errors are not stored and may be retried with the same key.
func Idempotency(cache ports.Cache, cfg config.IdempotencyConfig, log *zap.Logger) fiber.Handler {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return func(c *fiber.Ctx) error {
		if fiber.IsMethodSafe(c.Method()) {
			return c.Next()
		}
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLength {
			return domain.E(domain.KindInvalidInput, "idempotency", "idempotency key longer than %d characters", maxIdempotencyKeyLength)
		}

		cacheKey := idempotencyKey(c, key)
		if replayed, err := replay(c, cache, cacheKey); err != nil {
			log.Warn("Idempotency lookup failed", zap.String("key", cacheKey), zap.Error(err))
		} else if replayed {
			return nil
		}

		lockKey := cacheKey + ":lock"
		acquired, err := cache.SetNX(c.Context(), lockKey, "1", idempotencyLockTTL)
		if err != nil {
			log.Warn("Idempotency lock unavailable, processing without replay protection", zap.Error(err))
			return c.Next()
		}
		if !acquired {
			return fiber.NewError(fiber.StatusConflict, "a request with this idempotency key is still in progress")
		}
		defer func() {
			if err := cache.Delete(c.Context(), lockKey); err != nil {
				log.Warn("Failed to release idempotency lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			return nil
		}
		data, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err != nil {
			return fmt.Errorf("encode idempotent response: %w", err)
		}
		if err := cache.Set(c.Context(), cacheKey, data, ttl); err != nil {
			log.Warn("Failed to store idempotent response", zap.String("key", cacheKey), zap.Error(err))
		}
		return nil
	}
}

func idempotencyKey(c *fiber.Ctx, key string) string {
	scope := "anonymous"
	if p := PrincipalFrom(c); p != nil {
		scope = strings.ToLower(p.Account.Hex())
	}
	return fmt.Sprintf("idempotency:%s:%s:%s:%s", scope, c.Method(), c.Path(), key)
}

func replay(c *fiber.Ctx, cache ports.Cache, cacheKey string) (bool, error) {
	raw, err := cache.Get(c.Context(), cacheKey)
	if errors.Is(err, ports.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var res cachedResponse
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return false, fmt.Errorf("decode idempotent response: %w", err)
	}
	if res.ContentType != "" {
		c.Set(fiber.HeaderContentType, res.ContentType)
	}
	c.Set(ReplayedHeader, "true")
	return true, c.Status(res.Status).Send(res.Body)
}

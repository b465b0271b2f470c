package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slotify/pkg/logger"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Service is the read-through cache the catalog uses. Hold and availability
// state never goes through here; only near-static item metadata does.
type Service interface {
	// GetOrSet returns the cached value for key into dest, or runs fetch,
	// caches its result, and returns it. Cache errors degrade to a fetch.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch func() (interface{}, error), dest interface{}) error

	// DeletePattern drops every key matching the glob pattern. Used to
	// invalidate a whole module's keys after a write.
	DeletePattern(ctx context.Context, pattern string) error
}

type service struct {
	client *redis.Client
	log    *logger.Logger
}

func NewService(client *redis.Client) Service {
	return &service{client: client, log: logger.GetDefault()}
}

func (s *service) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch func() (interface{}, error), dest interface{}) error {
	err := s.get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("cache read failed, falling through to fetch",
			"key", key,
			"error", err,
		)
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	// Fire and forget; a failed write only costs the next reader a fetch.
	go func() {
		if err := s.set(context.Background(), key, value, ttl); err != nil {
			s.log.Warn("cache write failed", "key", key, "error", err)
		}
	}()

	// Round-trip through JSON so dest sees the same shape a cache hit would.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return json.Unmarshal(raw, dest)
}

func (s *service) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("cache scan pattern %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete pattern %q: %w", pattern, err)
	}
	return nil
}

func (s *service) get(ctx context.Context, key string, dest interface{}) error {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get: %w", err)
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (s *service) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

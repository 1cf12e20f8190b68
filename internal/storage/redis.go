package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/animerank-crawler/internal/domain"
)

// RedisStore remembers which detail pages were crawled recently.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MarkAsCrawled sets a key with a TTL to prevent re-crawling.
func (s *RedisStore) MarkAsCrawled(ctx context.Context, link domain.Link, ttl time.Duration) error {
	return s.client.Set(ctx, crawledKey(link), "1", ttl).Err()
}

// IsRecentlyCrawled checks if a link has been crawled within the TTL.
func (s *RedisStore) IsRecentlyCrawled(ctx context.Context, link domain.Link) (bool, error) {
	n, err := s.client.Exists(ctx, crawledKey(link)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func crawledKey(link domain.Link) string {
	sum := sha256.Sum256([]byte(link))
	return "crawled:" + hex.EncodeToString(sum[:])
}

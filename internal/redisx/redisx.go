package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// DedupStore remembers processed event ids so worker handlers stay
// idempotent across redeliveries. SetNX is the whole protocol: first caller
// wins the key, everyone else sees it as already processed.
type DedupStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedupStore(rdb *redis.Client, ttl time.Duration) *DedupStore {
	return &DedupStore{rdb: rdb, ttl: ttl}
}

func (s *DedupStore) Key(consumer, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", consumer, eventID)
}

// Seen marks the key and reports whether it had been marked before.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

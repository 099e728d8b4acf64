package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces rate-limit counters in a shared Redis.
const keyPrefix = "rl:window:"

// Store is the Redis-backed window store for multi-instance deployments
// where per-user traffic cannot be pinned to one process. Counters live in a
// single INCR'd key whose TTL equals the window, which gives the same
// hard-reset semantics as the in-memory store: when the key expires the next
// hit starts a fresh window at 1.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	k := keyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis window hit: %w", err)
	}

	count := int(incr.Val())
	ttl := pttl.Val()
	if ttl < 0 {
		// Fresh key: start the window now. A crash between INCR and PEXPIRE
		// leaves a TTL-less key; the ttl<0 branch repairs it on the next hit.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis window expire: %w", err)
		}
		return count, 0, nil
	}

	elapsed := window - ttl
	if elapsed < 0 {
		elapsed = 0
	}
	return count, elapsed, nil
}

// EvictIdle is a no-op: Redis TTLs expire windows natively.
func (s *Store) EvictIdle(ctx context.Context) (int, error) {
	return 0, nil
}

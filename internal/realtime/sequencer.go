package realtime

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Sequencer hands out the per-subject sequence numbers stamped on status
// events.
type Sequencer interface {
	Next(ctx context.Context, subject string) (int64, error)
}

type MemorySequencer struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{last: map[string]int64{}}
}

func (s *MemorySequencer) Next(_ context.Context, subject string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[subject]++
	return s.last[subject], nil
}

// RedisSequencer shares counters across processes. Keys expire after ttl of
// inactivity.
type RedisSequencer struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSequencer(rdb *goredis.Client) *RedisSequencer {
	return &RedisSequencer{rdb: rdb, prefix: "status_seq:", ttl: 24 * time.Hour}
}

func (s *RedisSequencer) Next(ctx context.Context, subject string) (int64, error) {
	key := s.prefix + subject
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

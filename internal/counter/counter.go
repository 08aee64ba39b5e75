// Package counter wraps the shared redis instance behind the small set of
// operations the gateway needs: TTL-aware increments, plain reads,
// set membership, and bounded list pushes. Every call runs under a bounded
// timeout so a redis outage degrades to an error instead of a hang.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

type Store struct {
	client  *redis.Client
	timeout time.Duration
}

func NewStore(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Store{
		client:  redis.NewClient(opt),
		timeout: opTimeout,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// IncrWithTTL atomically increments key and returns the new value. The
// expiration is attached when the increment creates the key, so a window's
// lifetime starts at its first request.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	return count, nil
}

// GetInt reads an integer counter. A missing key reads as zero.
func (s *Store) GetInt(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) IsMember(ctx context.Context, setKey, member string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.client.SIsMember(ctx, setKey, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", setKey, err)
	}
	return ok, nil
}

// PushAndTrim prepends value to the list at key and trims the list to the
// most recent maxLen entries. Older entries are silently dropped.
func (s *Store) PushAndTrim(ctx context.Context, key string, value []byte, maxLen int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	if err := s.client.LTrim(ctx, key, 0, maxLen-1).Err(); err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return nil
}

// ListRange reads list entries between start and stop, newest first.
func (s *Store) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

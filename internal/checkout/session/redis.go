package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickbite/orderflow/internal/checkout"
)

// RedisStore keeps sessions in Redis so every process behind the load
// balancer sees the same in-flight checkouts. Sessions are stored as JSON
// with a key TTL of expiry + retentionGrace; after Redis drops the key,
// "not found" is the answer, which is fine past the grace window.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "checkout:session:",
	}
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get session %s: %w", id, err)
	}

	var s checkout.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("redis: decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *checkout.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), b, r.ttl(s)).Err(); err != nil {
		return fmt.Errorf("redis: put session %s: %w", s.ID, err)
	}
	return nil
}

// CompareAndSwap uses Redis' optimistic WATCH transaction: if another client
// writes the key between our read and our MULTI/EXEC, the transaction fails
// and we report a version conflict for the caller to retry.
func (r *RedisStore) CompareAndSwap(ctx context.Context, s *checkout.Session) error {
	key := r.key(s.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return checkout.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("redis: get session %s: %w", s.ID, err)
		}

		var cur checkout.Session
		if err := json.Unmarshal([]byte(raw), &cur); err != nil {
			return fmt.Errorf("redis: decode session %s: %w", s.ID, err)
		}
		if cur.Version != s.Version {
			return checkout.ErrVersionConflict
		}

		next := *s
		next.Version++
		b, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("redis: encode session %s: %w", s.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl(s))
			return nil
		})
		if err == nil {
			s.Version = next.Version
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return checkout.ErrVersionConflict
	}
	return err
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis: delete session %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) ttl(s *checkout.Session) time.Duration {
	ttl := time.Until(s.ExpiresAt) + retentionGrace
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

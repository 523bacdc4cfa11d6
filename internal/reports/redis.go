// Package reports keeps finished fan-out reports in Redis so a client can
// fetch one after the bulk request returned.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"outbound/internal/domain"
)

const DefaultTTL = 24 * time.Hour

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(id string) string { return "fanout:" + id }

func (s *RedisStore) Save(ctx context.Context, r domain.FanoutReport) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(r.ID), b, s.ttl).Err()
}

// Get returns domain.ErrNotFound for unknown or expired reports.
func (s *RedisStore) Get(ctx context.Context, id string) (domain.FanoutReport, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FanoutReport{}, fmt.Errorf("fanout %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FanoutReport{}, err
	}
	var r domain.FanoutReport
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.FanoutReport{}, fmt.Errorf("decode fanout %s: %w", id, err)
	}
	return r, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

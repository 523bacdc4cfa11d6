package reports

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"outbound/internal/domain"
)

// MemoryStore keeps reports in process memory. It backs the API when no
// Redis is configured; reports do not survive a restart and are not shared
// between replicas.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{c: gocache.New(ttl, ttl/2)}
}

func (s *MemoryStore) Save(_ context.Context, r domain.FanoutReport) error {
	s.c.SetDefault(key(r.ID), r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.FanoutReport, error) {
	v, ok := s.c.Get(key(id))
	if !ok {
		return domain.FanoutReport{}, fmt.Errorf("fanout %s: %w", id, domain.ErrNotFound)
	}
	return v.(domain.FanoutReport), nil
}

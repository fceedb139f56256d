package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store. Expired items are dropped when read;
// there is no background janitor.
type MemoryStore struct {
	client *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{client: gocache.New(gocache.NoExpiration, 0)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.client.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

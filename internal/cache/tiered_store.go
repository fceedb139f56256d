package cache

import (
	"context"
	"time"
)

// l1Share is the fraction of the entry TTL the local tier keeps a copy for
const l1Share = 0.3

// TieredStore fronts a shared Store with a short-lived in-process copy
type TieredStore struct {
	l1    *MemoryStore
	l2    Store
	l1TTL time.Duration
}

func NewTieredStore(l1 *MemoryStore, l2 Store, defaultTTL time.Duration) *TieredStore {
	return &TieredStore{l1: l1, l2: l2, l1TTL: time.Duration(float64(defaultTTL) * l1Share)}
}

func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, _ := s.l1.Get(ctx, key); ok {
		return data, true, nil
	}
	data, ok, err := s.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = s.l1.Set(ctx, key, data, s.l1TTL)
	return data, true, nil
}

func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return s.l1.Set(ctx, key, value, time.Duration(float64(ttl)*l1Share))
}

func (s *TieredStore) Delete(ctx context.Context, key string) error {
	_ = s.l1.Delete(ctx, key)
	return s.l2.Delete(ctx, key)
}

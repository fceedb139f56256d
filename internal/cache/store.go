package cache

import (
	"context"
	"time"
)

// Store is the key-value boundary the response cache sits on. A miss is
// (nil, false, nil), never an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

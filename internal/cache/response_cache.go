package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"smartsurvey/internal/platform/logger"
)

// ErrComputePanicked is returned to every waiter when a compute panics
var ErrComputePanicked = errors.New("cache compute panicked")

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_ai_cache_lookups_total",
		Help: "AI response cache lookups by result.",
	}, []string{"result"})
	cacheComputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_ai_cache_computes_total",
		Help: "Upstream computes triggered by cache misses, by outcome.",
	}, []string{"outcome"})
)

// entry is what lands in the Store. Expiry is checked on read, so a Store that
// keeps items longer than asked never serves stale values.
type entry struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ComputeFunc produces the value for a missing key. It runs detached from the
// caller's cancellation so a result can still be cached after the caller leaves.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// ResponseCache is a cache-or-compute front for AI calls with at most one
// in-flight compute per key. Failed computes are never stored.
type ResponseCache struct {
	store Store
	group singleflight.Group
	now   func() time.Time
	log   *logger.Logger
}

func NewResponseCache(store Store, log *logger.Logger) *ResponseCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &ResponseCache{store: store, now: time.Now, log: log}
}

// Key derives a stable cache key from request parameters
func Key(namespace string, params interface{}) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", namespace, err)
	}
	sum := sha256.Sum256(data)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}

// GetOrCompute returns the cached value for key, or runs compute once for all
// concurrent callers and stores a successful result for ttl.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	if v, ok := c.lookup(ctx, key, true); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (val interface{}, ferr error) {
		defer func() {
			if r := recover(); r != nil {
				cacheComputes.WithLabelValues("error").Inc()
				c.log.Error("cache compute panicked", "key", key, "panic", r)
				val, ferr = nil, fmt.Errorf("%w: %v", ErrComputePanicked, r)
			}
		}()
		// another flight may have filled the key between our miss and now
		if v, ok := c.lookup(detached, key, false); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			cacheComputes.WithLabelValues("error").Inc()
			return nil, err
		}
		cacheComputes.WithLabelValues("ok").Inc()
		c.put(detached, key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops key from the store
func (c *ResponseCache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *ResponseCache) lookup(ctx context.Context, key string, record bool) ([]byte, bool) {
	count := func(result string) {
		if record {
			cacheLookups.WithLabelValues(result).Inc()
		}
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		count("store_error")
		c.log.Warn("cache read failed, computing", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		count("miss")
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		count("miss")
		c.log.Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if !e.ExpiresAt.IsZero() && !c.now().Before(e.ExpiresAt) {
		count("expired")
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	count("hit")
	return e.Value, true
}

func (c *ResponseCache) put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := c.now()
	e := entry{Value: value, CreatedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.log.Warn("cache entry not encodable", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// GetOrComputeJSON is GetOrCompute for JSON-encodable values
func GetOrComputeJSON[T any](ctx context.Context, c *ResponseCache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached value: %w", err)
	}
	return out, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"smartsurvey/internal/model"
)

// ErrSessionBusy is returned when another request holds the session lock
var ErrSessionBusy = errors.New("session is busy")

type SessionCache interface {
	Set(ctx context.Context, state *model.SessionState) error
	Get(ctx context.Context, id string) (*model.SessionState, error)
	Delete(ctx context.Context, id string) error
	// Lock serialises submissions for one session across server instances
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

type sessionCache struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	retry   time.Duration
	wait    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionCache{
		client:  client,
		ttl:     ttl,
		lockTTL: 30 * time.Second,
		retry:   25 * time.Millisecond,
		wait:    2 * time.Second,
	}
}

func (c *sessionCache) stateKey(id string) string {
	return fmt.Sprintf("session:%s:state", id)
}

func (c *sessionCache) lockKey(id string) string {
	return fmt.Sprintf("session:%s:lock", id)
}

func (c *sessionCache) Set(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.stateKey(state.SessionID), data, c.ttl).Err()
}

func (c *sessionCache) Get(ctx context.Context, id string) (*model.SessionState, error) {
	data, err := c.client.Get(ctx, c.stateKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *sessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.stateKey(id), c.lockKey(id)).Err()
}

// releaseLock deletes the lock only if we still own it
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (c *sessionCache) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	key := c.lockKey(id)
	deadline := time.Now().Add(c.wait)

	for {
		ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseLock.Run(context.WithoutCancel(ctx), c.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrSessionBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

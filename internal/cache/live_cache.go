package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LiveProgressCache tracks in-progress sessions per survey in a ZSET scored by
// the number of answers given so far
type LiveProgressCache interface {
	Touch(ctx context.Context, surveyID, sessionID string, answered int) error
	Remove(ctx context.Context, surveyID, sessionID string) error
	Top(ctx context.Context, surveyID string, limit int) ([]LiveSession, error)
	Count(ctx context.Context, surveyID string) (int64, error)
}

// LiveSession is one entry of the live progress board
type LiveSession struct {
	SessionID string `json:"sessionId"`
	Answered  int    `json:"answered"`
	Rank      int    `json:"rank"`
}

type liveProgressCache struct {
	client *redis.Client
}

func NewLiveProgressCache(client *redis.Client) LiveProgressCache {
	return &liveProgressCache{
		client: client,
	}
}

func (c *liveProgressCache) key(surveyID string) string {
	return fmt.Sprintf("survey:%s:live", surveyID)
}

func (c *liveProgressCache) Touch(ctx context.Context, surveyID, sessionID string, answered int) error {
	return c.client.ZAdd(ctx, c.key(surveyID), redis.Z{
		Score:  float64(answered),
		Member: sessionID,
	}).Err()
}

func (c *liveProgressCache) Remove(ctx context.Context, surveyID, sessionID string) error {
	return c.client.ZRem(ctx, c.key(surveyID), sessionID).Err()
}

func (c *liveProgressCache) Top(ctx context.Context, surveyID string, limit int) ([]LiveSession, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(surveyID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LiveSession, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries[i] = LiveSession{
			SessionID: member,
			Answered:  int(z.Score),
			Rank:      i + 1,
		}
	}
	return entries, nil
}

func (c *liveProgressCache) Count(ctx context.Context, surveyID string) (int64, error) {
	return c.client.ZCard(ctx, c.key(surveyID)).Result()
}

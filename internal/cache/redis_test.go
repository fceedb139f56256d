package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("ai:cache:k"))
	data, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(data))

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "d", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "d"))
	assert.False(t, mr.Exists("ai:cache:d"))
}

func TestTieredStore_ReadsThroughToL2(t *testing.T) {
	_, client := newTestRedis(t)
	l1 := NewMemoryStore()
	l2 := NewRedisStore(client)
	s := NewTieredStore(l1, l2, time.Hour)
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "k", []byte("from-l2"), time.Hour))
	data, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-l2", string(data))

	cached, ok, _ := l1.Get(ctx, "k")
	assert.True(t, ok, "L2 hits are copied into L1")
	assert.Equal(t, "from-l2", string(cached))

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestResponseCache_OverRedis(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewResponseCache(NewRedisStore(client), nil)
	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"ok":true}`), nil
	}
	for i := 0; i < 2; i++ {
		v, err := c.GetOrCompute(context.Background(), "validate:abc", time.Hour, compute)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(v))
	}
	assert.Equal(t, 1, calls)
}

func TestSessionCache(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewSessionCache(client, time.Hour)
	ctx := context.Background()

	got, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &model.SessionState{
		SessionID:         "sess-1",
		SurveyID:          "s1",
		SurveyVersion:     3,
		Status:            model.SessionAwaitingAnswer,
		CurrentQuestionID: "Q2",
		History:           model.AnswerHistory{{QuestionID: "Q1", Value: true}},
	}
	require.NoError(t, c.Set(ctx, state))
	assert.True(t, mr.Exists("session:sess-1:state"))
	ttl := mr.TTL("session:sess-1:state")
	assert.Equal(t, time.Hour, ttl)

	got, err = c.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Q2", got.CurrentQuestionID)
	assert.Equal(t, true, got.History[0].Value)

	require.NoError(t, c.Delete(ctx, "sess-1"))
	got, err = c.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionCache_Lock(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewSessionCache(client, time.Hour).(*sessionCache)
	c.wait = 50 * time.Millisecond
	ctx := context.Background()

	unlock, err := c.Lock(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:sess-1:lock"))

	_, err = c.Lock(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionBusy)

	unlock()
	assert.False(t, mr.Exists("session:sess-1:lock"))

	unlock2, err := c.Lock(ctx, "sess-1")
	require.NoError(t, err)
	unlock2()
}

func TestLiveProgressCache(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewLiveProgressCache(client)
	ctx := context.Background()

	require.NoError(t, c.Touch(ctx, "s1", "a", 1))
	require.NoError(t, c.Touch(ctx, "s1", "b", 4))
	require.NoError(t, c.Touch(ctx, "s1", "c", 2))
	require.NoError(t, c.Touch(ctx, "s1", "a", 3))

	top, err := c.Top(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []LiveSession{{SessionID: "b", Answered: 4, Rank: 1}, {SessionID: "a", Answered: 3, Rank: 2}}, top)

	require.NoError(t, c.Remove(ctx, "s1", "b"))
	n, err := c.Count(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

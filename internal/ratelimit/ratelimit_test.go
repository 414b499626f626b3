package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientDisablesEverything(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))

	var l *Locker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))

	var b *TokenBucket
	_, err = b.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseResult(t *testing.T) {
	res, err := parseResult([]interface{}{int64(1), "2.5", int64(1700000000000)}, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.InDelta(t, 2.5, res.Remaining, 1e-9)
	assert.Zero(t, res.RetryAfter)

	res, err = parseResult([]interface{}{int64(0), "0.25", int64(1700000000000)}, 0.5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1500*time.Millisecond, res.RetryAfter)

	_, err = parseResult([]interface{}{"yes"}, 1)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = parseResult([]interface{}{int64(1), "abc"}, 1)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

// Runs against a real server when MEMBERBRIDGE_TEST_REDIS_ADDR is set.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("MEMBERBRIDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEMBERBRIDGE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	key := "memberbridge:test:" + t.Name()
	l := NewLocker(client)
	token, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, key, "someone-else"))
	_, ok, _ = l.TryLock(ctx, key, time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, key, token))
	token, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, key, token))

	b := NewTokenBucket(client)
	bucketKey := key + ":bucket"
	t.Cleanup(func() { client.Del(ctx, bucketKey) })
	for i := 0; i < 2; i++ {
		res, err := b.Allow(ctx, bucketKey, 0.01, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := b.Allow(ctx, bucketKey, 0.01, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisTokenBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	_, err := NewRedisTokenBucket(nil, 10, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, 0, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, 10, 0, "")
	require.Error(t, err)

	l, err := NewRedisTokenBucket(client, 60, time.Minute, " ")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyPrefix, l.keyPrefix)
	assert.InDelta(t, 0.001, l.rate, 1e-12)
	assert.Equal(t, 2*time.Minute, l.ttl)
}

func TestChargeClampsToCapacity(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	l, err := NewRedisTokenBucket(client, 30, time.Minute, "")
	require.NoError(t, err)

	tests := []struct {
		cost, want int64
	}{
		{cost: -4, want: 1},
		{cost: 0, want: 1},
		{cost: 1, want: 1},
		{cost: 12, want: 12},
		{cost: 30, want: 30},
		{cost: 500, want: 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Charge(tt.cost), "cost %d", tt.cost)
	}
}

func TestParseReply(t *testing.T) {
	d, err := parseReply([]any{int64(1), int64(17), int64(0)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(17), d.Remaining)
	assert.Zero(t, d.RetryAfter)

	d, err = parseReply([]any{int64(0), int64(2), int64(1500)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	_, err = parseReply([]any{int64(1), int64(2)})
	require.Error(t, err)
	_, err = parseReply("OK")
	require.Error(t, err)
	_, err = parseReply([]any{int64(1), "many", int64(0)})
	require.Error(t, err)
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int64(7), 7, 7.0, "7"} {
		v, err := toInt64(in)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	}
	_, err := toInt64([]byte("7"))
	require.Error(t, err)
	_, err = toInt64("seven")
	require.Error(t, err)
}

package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "revoked_token_abc", key("abc"))
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	// A nil client would panic if Revoke reached redis.
	r := &Revoker{timeout: time.Second, now: func() time.Time { return now }}

	require.NoError(t, r.Revoke(context.Background(), "abc", now.Add(-time.Minute)))
	assert.Equal(t, time.Hour, r.ttlUntil(now.Add(time.Hour)))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRevokeAndIsRevoked(t *testing.T) {
	mr, rdb := newRedis(t)
	r := New(rdb, time.Second)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "abc", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(key("abc"))
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	revoked, err = r.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(time.Hour + time.Second)
	revoked, err = r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked, "entry expires with the token")
}

func TestIsRevokedReportsRedisErrors(t *testing.T) {
	mr, rdb := newRedis(t)
	r := New(rdb, time.Second)
	mr.Close()

	_, err := r.IsRevoked(context.Background(), "abc")
	assert.Error(t, err)
}

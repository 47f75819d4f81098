// Package revocation keeps the ids of logged-out tokens in redis until the
// tokens would have expired on their own.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Revoker struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

func New(rdb *redis.Client, timeout time.Duration) *Revoker {
	return &Revoker{rdb: rdb, timeout: timeout, now: time.Now}
}

func key(jti string) string {
	return fmt.Sprintf("revoked_token_%s", jti)
}

// ttlUntil returns how long a revocation entry must live. Tokens that have
// already expired need no entry.
func (r *Revoker) ttlUntil(until time.Time) time.Duration {
	return until.Sub(r.now())
}

func (r *Revoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := r.ttlUntil(until)
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.rdb.Set(ctx, key(jti), 1, ttl).Err()
}

func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.rdb.Get(ctx, key(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

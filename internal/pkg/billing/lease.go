package billing

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKey = "billing:reconcile:lease"

// RunLease serializes full recomputes across processes with a redis key
// that expires on its own, so a crashed holder cannot wedge the pipeline.
// The lease itself is stateless; each Acquire hands the holder its own
// token, so concurrent holders on one instance cannot clobber each other.
type RunLease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLease creates a lease with the given expiry. The expiry should
// comfortably exceed the engine run timeout.
func NewRunLease(client *redis.Client, ttl time.Duration) *RunLease {
	return &RunLease{client: client, ttl: ttl}
}

// Acquire attempts to take the lease and returns the holder token to pass
// to Release. A false return means another run holds it; the caller should
// skip this cycle.
func (l *RunLease) Acquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lease if the given token still owns it. Best-effort:
// the key expires anyway.
func (l *RunLease) Release(ctx context.Context, token string) {
	if token == "" {
		return
	}
	val, err := l.client.Get(ctx, leaseKey).Result()
	if err == nil && val == token {
		if err := l.client.Del(ctx, leaseKey).Err(); err != nil {
			log.Warnf("[Reconcile] lease release failed: %v", err)
		}
	}
}

package billing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLease(t *testing.T) (*RunLease, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRunLease(client, time.Minute), srv
}

func TestRunLeaseSerializesHolders(t *testing.T) {
	lease, _ := newTestLease(t)
	ctx := context.Background()

	token, ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = lease.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must be refused while held")

	lease.Release(ctx, token)

	token2, ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, token, token2, "each holder gets its own token")
}

func TestRunLeaseStaleReleaseKeepsCurrentHolder(t *testing.T) {
	lease, _ := newTestLease(t)
	ctx := context.Background()

	tokenA, ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	lease.Release(ctx, tokenA)

	_, ok, err = lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A's token is stale now; releasing with it must not free B's lease.
	lease.Release(ctx, tokenA)

	_, ok, err = lease.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "current holder must survive a stale release")
}

func TestRunLeaseAcquireErrorSurfaces(t *testing.T) {
	lease, srv := newTestLease(t)
	srv.Close()

	_, ok, err := lease.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRunLeaseExpiresOnItsOwn(t *testing.T) {
	lease, srv := newTestLease(t)
	ctx := context.Background()

	_, ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed holder never releases; the TTL clears the lease.
	srv.FastForward(2 * time.Minute)

	_, ok, err = lease.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"govdociq/internal/offline/lock"
	"govdociq/pkg/testutil/containers"
)

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redis := containers.GetManager().GetRedis(t)
	require.NoError(t, redis.FlushAll(ctx))

	locker := lock.NewRedis(redis.Client)

	acquired, err := locker.Acquire(ctx, "offline-sync:tenant-a", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// Second holder loses until release.
	again, err := locker.Acquire(ctx, "offline-sync:tenant-a", time.Minute)
	require.NoError(t, err)
	require.False(t, again)

	other, err := locker.Acquire(ctx, "offline-sync:tenant-b", time.Minute)
	require.NoError(t, err)
	require.True(t, other)

	require.NoError(t, locker.Release(ctx, "offline-sync:tenant-a"))

	reacquired, err := locker.Acquire(ctx, "offline-sync:tenant-a", time.Minute)
	require.NoError(t, err)
	require.True(t, reacquired)

	// TTL expiry frees the name without an explicit release.
	short, err := locker.Acquire(ctx, "offline-sync:tenant-c", 150*time.Millisecond)
	require.NoError(t, err)
	require.True(t, short)
	time.Sleep(300 * time.Millisecond)

	expired, err := locker.Acquire(ctx, "offline-sync:tenant-c", time.Minute)
	require.NoError(t, err)
	require.True(t, expired)
}

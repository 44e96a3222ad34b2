package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/musharafmush/pos-sub010/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialises(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})

	go func() {
		_ = locker.WithLock(ctx, "offers", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()
	<-firstDone

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- locker.WithLock(ctx, "offers", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-secondErr)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestAcquireGivesUpWhenContextEnds(t *testing.T) {
	locker, mr := newLocker(t)
	release, err := locker.Acquire(context.Background(), "hsn", time.Second)
	require.NoError(t, err)
	require.True(t, mr.Exists("pos:lock:hsn"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "hsn", time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	require.False(t, mr.Exists("pos:lock:hsn"))
}

func TestReleaseLeavesForeignLease(t *testing.T) {
	locker, mr := newLocker(t)
	release, err := locker.Acquire(context.Background(), "offers", time.Second)
	require.NoError(t, err)

	require.NoError(t, mr.Set("pos:lock:offers", "someone-else"))
	release()
	got, err := mr.Get("pos:lock:offers")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestUnconfiguredLocker(t *testing.T) {
	_, err := lock.Locker{}.Acquire(context.Background(), "x", time.Second)
	require.ErrorIs(t, err, lock.ErrNotConfigured)
}

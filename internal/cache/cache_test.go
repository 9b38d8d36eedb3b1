package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Wrap(client), mr
}

func TestIncrWithinSetsExpiryOnce(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	n, err := rc.IncrWithin(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("rl:1.2.3.4"))

	mr.FastForward(30 * time.Second)
	n, err = rc.IncrWithin(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("rl:1.2.3.4"))

	mr.FastForward(31 * time.Second)
	n, err = rc.IncrWithin(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetDelIntMissingKeyIsZero(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	n, err := rc.GetDelInt(ctx, "views:tool:none")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = rc.IncrBy(ctx, "views:tool:a", 5)
	require.NoError(t, err)
	n, err = rc.GetDelInt(ctx, "views:tool:a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	exists, err := rc.Exists(ctx, "views:tool:a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSortedSetLeaderboard(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.ZReplace(ctx, "lb", map[string]float64{"a": 3, "b": 7, "c": 1}, time.Hour))
	_, err := rc.ZIncrBy(ctx, "lb", 5, "a")
	require.NoError(t, err)

	top, err := rc.ZTop(ctx, "lb", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Member)
	assert.Equal(t, float64(8), top[0].Score)
	assert.Equal(t, "b", top[1].Member)
}

func TestScanMatchesPattern(t *testing.T) {
	rc, mr := newTestRedis(t)
	require.NoError(t, mr.Set("views:tool:1", "1"))
	require.NoError(t, mr.Set("views:tool:2", "1"))
	require.NoError(t, mr.Set("other", "1"))

	keys, err := rc.Scan(context.Background(), "views:tool:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"views:tool:1", "views:tool:2"}, keys)
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	rc, _ := newTestRedis(t)
	locker := NewRedisLocker(rc, 2*time.Second)
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "launch:2026-05-01")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisLockerStaleReleaseKeepsNewHolder(t *testing.T) {
	rc, mr := newTestRedis(t)
	locker := NewRedisLocker(rc, time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "day")
	require.NoError(t, err)

	// First holder's TTL lapses and someone else takes the lock
	mr.FastForward(2 * time.Second)
	release2, err := locker.Acquire(ctx, "day")
	require.NoError(t, err)
	defer release2()

	release()
	assert.True(t, mr.Exists("lock:day"), "stale release must not delete the new holder's lock")
}

func TestRedisLockerBusy(t *testing.T) {
	rc, _ := newTestRedis(t)
	locker := NewRedisLocker(rc, time.Second)
	locker.maxWait = 50 * time.Millisecond

	release, err := locker.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "x")
	assert.ErrorIs(t, err, ErrLockBusy)

	release()
	release() // second call is a no-op

	release, err = locker.Acquire(context.Background(), "x")
	require.NoError(t, err)
	release()
}

func TestLocalLockerForgetsReleasedNames(t *testing.T) {
	locker := NewLocalLocker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), fmt.Sprintf("launch:%d", i%4))
			if assert.NoError(t, err) {
				release()
			}
		}(i)
	}
	wg.Wait()

	held, err := locker.Acquire(context.Background(), "held")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "held")
	assert.ErrorIs(t, err, ErrLockBusy)

	locker.mu.Lock()
	assert.Len(t, locker.locks, 1)
	locker.mu.Unlock()

	held()
	locker.mu.Lock()
	assert.Empty(t, locker.locks)
	locker.mu.Unlock()
}

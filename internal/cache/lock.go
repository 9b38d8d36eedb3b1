package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when a lock could not be acquired before the
// context or the wait budget ran out
var ErrLockBusy = errors.New("lock is held by another worker")

// Locker serializes work on a named resource across goroutines and, when
// backed by Redis, across server instances.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done. The returned
	// release function is safe to call more than once.
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// releaseScript deletes the key only if it still holds our token, so a
// holder whose TTL lapsed cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release
type RedisLocker struct {
	rc      *RedisClient
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
	prefix  string
}

// NewRedisLocker creates a Redis-backed locker. ttl bounds how long a crashed
// holder can keep the lock.
func NewRedisLocker(rc *RedisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		rc:      rc,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		maxWait: ttl,
		prefix:  "lock:",
	}
}

// Acquire implements Locker
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rc.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockBusy
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is canceled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.rc.client, []string{key}, token).Err()
		})
	}, nil
}

// LocalLocker implements Locker with in-process mutexes. It is used when
// Redis is not configured, which is only correct for a single instance.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

// localLock is dropped from the map once no goroutine holds or awaits it
type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Acquire implements Locker
func (l *LocalLocker) Acquire(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[name]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[name] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(name, lk)
		return nil, ErrLockBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.unref(name, lk)
		})
	}, nil
}

func (l *LocalLocker) unref(name string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, name)
	}
}

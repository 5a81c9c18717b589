package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("another change is in progress, retry shortly")

// Locker serialises work on a key across callers.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker serialises callers inside one process. A key's entry lives
// only while someone holds or waits for it.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localKey
}

type localKey struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*localKey)}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	entry, ok := l.keys[key]
	if !ok {
		entry = &localKey{sem: make(chan struct{}, 1)}
		l.keys[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.sem
				l.drop(key, entry)
			})
		}, nil
	case <-ctx.Done():
		l.drop(key, entry)
		return nil, ErrBusy
	}
}

func (l *LocalLocker) drop(key string, entry *localKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.keys, key)
	}
}

// RedisLocker holds keys in redis so several server processes sharing one
// database also share the lock.
type RedisLocker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(client),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	held, err := l.client.Obtain(ctx, "lock:"+key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// The request context may already be cancelled when the release runs.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = held.Release(releaseCtx)
	}, nil
}

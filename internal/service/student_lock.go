package service

import (
	"context"
	"fmt"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StudentLocker serializes work per student. The returned func releases the
// lock and is safe to call once.
type StudentLocker interface {
	Lock(ctx context.Context, studentID string) (func(), error)
}

// LocalStudentLocker is a keyed mutex for single-instance deployments.
type LocalStudentLocker struct {
	mu    sync.Mutex
	locks map[string]*studentLock
}

type studentLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalStudentLocker() *LocalStudentLocker {
	return &LocalStudentLocker{locks: make(map[string]*studentLock)}
}

func (l *LocalStudentLocker) Lock(ctx context.Context, studentID string) (func(), error) {
	l.mu.Lock()
	sl, ok := l.locks[studentID]
	if !ok {
		sl = &studentLock{ch: make(chan struct{}, 1)}
		l.locks[studentID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(studentID, sl, false)
		return nil, fmt.Errorf("%w: %w", util.ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(studentID, sl, true) })
	}, nil
}

func (l *LocalStudentLocker) release(studentID string, sl *studentLock, held bool) {
	if held {
		<-sl.ch
	}
	l.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, studentID)
	}
	l.mu.Unlock()
}

// releases only when the token still matches
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisStudentLocker holds a SETNX lock per student so that several API
// instances serialize on the same key. While held, the lock is extended every
// ttl/3 so a slow submission keeps it.
type RedisStudentLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedisStudentLocker(rdb *redis.Client, ttl time.Duration) *RedisStudentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStudentLocker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond}
}

func studentLockKey(studentID string) string {
	return "lesson_bundle:lock:student:" + studentID
}

func (l *RedisStudentLocker) Lock(ctx context.Context, studentID string) (func(), error) {
	key := studentLockKey(studentID)
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire student lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", util.ErrLockTimeout, ctx.Err())
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil {
				logger.Log.Warn("release student lock failed",
					zap.String("student_id", studentID),
					zap.Error(err),
				)
			}
		})
	}, nil
}

func (l *RedisStudentLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := renewScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				logger.Log.Warn("renew student lock failed", zap.String("key", key), zap.Error(err))
				continue
			}
			if n == 0 {
				logger.Log.Error("student lock lost before release", zap.String("key", key))
				return
			}
		}
	}
}

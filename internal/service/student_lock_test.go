package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lesson_bundle_backend/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStudentLocker_Serializes(t *testing.T) {
	l := NewLocalStudentLocker()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "student-1")
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside.Load())
	assert.Empty(t, l.locks)
}

func TestLocalStudentLocker_IndependentStudents(t *testing.T) {
	l := NewLocalStudentLocker()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalStudentLocker_ContextCancel(t *testing.T) {
	l := NewLocalStudentLocker()

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, util.ErrLockTimeout)

	unlock()
	unlock()
	assert.Empty(t, l.locks)
}

// newRedisLockers returns n lockers on separate clients sharing one server,
// one per simulated API instance.
func newRedisLockers(t *testing.T, n int, ttl time.Duration) (*miniredis.Miniredis, []*RedisStudentLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	lockers := make([]*RedisStudentLocker, n)
	for i := range lockers {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		lockers[i] = NewRedisStudentLocker(rdb, ttl)
		lockers[i].retry = 2 * time.Millisecond
	}
	return mr, lockers
}

func TestRedisStudentLocker_Serializes(t *testing.T) {
	mr, lockers := newRedisLockers(t, 2, 5*time.Second)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(l *RedisStudentLocker) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := l.Lock(ctx, "student-1")
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}(lockers[i%2])
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside.Load())
	assert.False(t, mr.Exists(studentLockKey("student-1")))
}

func TestRedisStudentLocker_WaitsForHolder(t *testing.T) {
	mr, lockers := newRedisLockers(t, 2, 5*time.Second)
	a, b := lockers[0], lockers[1]

	unlock, err := a.Lock(context.Background(), "student-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "student-1")
	assert.ErrorIs(t, err, util.ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := b.Lock(context.Background(), "student-2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists(studentLockKey("student-1")))

	again, err := b.Lock(context.Background(), "student-1")
	require.NoError(t, err)
	again()
}

func TestRedisStudentLocker_ReleaseKeepsForeignToken(t *testing.T) {
	mr, lockers := newRedisLockers(t, 1, 5*time.Second)
	key := studentLockKey("student-1")

	unlock, err := lockers[0].Lock(context.Background(), "student-1")
	require.NoError(t, err)

	// the lock expired and another instance took it
	require.NoError(t, mr.Set(key, "other-instance"))
	unlock()

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-instance", got)
}

func TestRedisStudentLocker_RenewsWhileHeld(t *testing.T) {
	ttl := 300 * time.Millisecond
	mr, lockers := newRedisLockers(t, 1, ttl)
	key := studentLockKey("student-1")

	unlock, err := lockers[0].Lock(context.Background(), "student-1")
	require.NoError(t, err)

	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists(key))
	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	unlock()
	assert.False(t, mr.Exists(key))
}

package redisstream

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredispool "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Locker guards the result stream so only one consumer reads it at a time.
type Locker interface {
	// TryAcquire returns false when another process holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// ErrLockLost is returned when the lock could not be extended.
var ErrLockLost = errors.New("consumer lock lost")

// RedsyncLocker implements Locker on a redsync mutex.
type RedsyncLocker struct {
	mutex *redsync.Mutex
}

// NewRedsyncLocker creates a lock named name with the given expiry.
func NewRedsyncLocker(client redis.UniversalClient, name string, ttl time.Duration) *RedsyncLocker {
	rs := redsync.New(goredispool.NewPool(client))
	return &RedsyncLocker{
		mutex: rs.NewMutex(name, redsync.WithExpiry(ttl), redsync.WithTries(1)),
	}
}

// TryAcquire implements Locker.
func (l *RedsyncLocker) TryAcquire(ctx context.Context) (bool, error) {
	err := l.mutex.TryLockContext(ctx)
	if err == nil {
		return true, nil
	}
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return false, nil
	}
	return false, err
}

// Extend implements Locker.
func (l *RedsyncLocker) Extend(ctx context.Context) error {
	ok, err := l.mutex.ExtendContext(ctx)
	if err != nil {
		return errors.Join(ErrLockLost, err)
	}
	if !ok {
		return ErrLockLost
	}
	return nil
}

// Release implements Locker.
func (l *RedsyncLocker) Release(ctx context.Context) error {
	_, err := l.mutex.UnlockContext(ctx)
	return err
}

package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrItemBusy indicates another withdrawal for the same item is in flight.
var ErrItemBusy = errors.New("item is locked by another withdrawal")

// WithdrawLockKey builds redis keys for per-item withdrawal critical sections.
func WithdrawLockKey(name string) string {
	return fmt.Sprintf("ledger:item:%s:lock", name)
}

// ItemLocker serializes withdrawals per item name. The lock is held across
// the whole read-plan-apply-record sequence so that two sessions can never
// deplete the same batches from overlapping snapshots.
type ItemLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewItemLocker wraps a redis client for per-name locking.
func NewItemLocker(client redis.UniversalClient, ttl time.Duration) *ItemLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ItemLocker{client: redislock.New(client), ttl: ttl}
}

// Acquire obtains the lock for an item name, retrying briefly before giving
// up with ErrItemBusy. The returned release func must be called when the
// withdrawal sequence finishes.
func (l *ItemLocker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return func(context.Context) error { return nil }, nil
	}
	lock, err := l.client.Obtain(ctx, WithdrawLockKey(name), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 10),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrItemBusy
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

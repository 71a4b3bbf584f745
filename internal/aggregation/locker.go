package aggregation

import (
	"context"
	"sync"
	"time"

	dErrors "parishnet/pkg/domain-errors"
)

// Locker serializes recomputations of the same snapshot key. Implementations
// may hold a database transaction for the duration of fn and hand it down
// through ctx.
type Locker interface {
	RunLocked(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// numLockShards spreads keys across independent mutexes so unrelated parents
// rarely contend.
const numLockShards = 128

// defaultLockTimeout bounds a recomputation when the caller set no deadline.
const defaultLockTimeout = 5 * time.Second

// ShardedLocker is the in-process Locker: one mutex per shard, shard chosen by
// FNV-1a over the key.
type ShardedLocker struct {
	shards  [numLockShards]sync.Mutex
	timeout time.Duration
}

// NewShardedLocker returns a locker applying timeout (or 5s when zero) to
// contexts without a deadline.
func NewShardedLocker(timeout time.Duration) *ShardedLocker {
	return &ShardedLocker{timeout: timeout}
}

func (l *ShardedLocker) RunLocked(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "recompute aborted: context cancelled")
	}

	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &l.shards[hashKey(key)%numLockShards]
	shard.Lock()
	defer shard.Unlock()

	// The wait for the shard may have outlived the deadline.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "recompute aborted: context cancelled")
	}

	return fn(ctx)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes session creation across manager replicas.
// The Session Manager locks the session ID, checks the snapshot store and only
// then reserves the ID, so two replicas never start the same session.
type DistributedLocker interface {
	// Lock blocks until key is held, ctx is done or the implementation gives up.
	// The lock expires after ttl even if the holder never unlocks.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

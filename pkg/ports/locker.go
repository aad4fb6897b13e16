package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on a run id across flowgraph replicas
// sharing one run store.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after
	// ttl if the holder never releases it; callers must call the returned
	// UnlockFunc when finished.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/handoff/pkg/adapters/memory"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewConfigStore(), memory.NewFactory())
	ctx := context.Background()
	count := 10000

	// Lock and release many sessions
	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.WithLock(ctx, sid, func(context.Context) error { return nil })
		_ = mgr.EndSession(ctx, sid)
	}

	lockCount := len(mgr.locks)
	t.Logf("Sessions: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after EndSession", lockCount)
	}
}

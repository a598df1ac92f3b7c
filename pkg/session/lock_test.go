package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/persistence"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(persistence.NewManager(memory.NewStore()))
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("doc-%d", i)
		s, err := mgr.Restore(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		_ = mgr.Save(ctx, s)
		_ = mgr.Delete(ctx, key)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

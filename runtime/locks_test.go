package runtime

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"mini-base/domain"
)

func TestConnLocks_Exclusive_Per_Tenant(t *testing.T) {
	req := require.New(t)
	locks := NewConnLocks()
	tenant := domain.TenantID("33612345678")

	// First acquisition wins, second is rejected
	req.True(locks.TryAcquire(tenant))
	req.False(locks.TryAcquire(tenant))
	req.True(locks.Held(tenant))

	// Another tenant is unaffected
	req.True(locks.TryAcquire("33699999999"))

	// Release frees the slot, double release stays harmless
	locks.Release(tenant)
	locks.Release(tenant)
	req.False(locks.Held(tenant))
	req.True(locks.TryAcquire(tenant))
}

func TestConnLocks_Concurrent_Acquire_Grants_One(t *testing.T) {
	req := require.New(t)
	locks := NewConnLocks()
	tenant := domain.TenantID("33612345678")

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locks.TryAcquire(tenant) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	req.Equal(int32(1), granted.Load())
}

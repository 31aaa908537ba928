package runtime

import (
	"sync"

	"mini-base/domain"
)

// ConnLocks is the keyed mutual-exclusion table preventing two connect
// attempts for the same tenant from racing between the registry check
// and client instantiation. Acquisition must be the first mutation of
// any connect attempt; release is guaranteed by the supervisor's defer.
type ConnLocks struct {
	mu   sync.Mutex
	held map[domain.TenantID]struct{}
}

func NewConnLocks() *ConnLocks {
	return &ConnLocks{held: make(map[domain.TenantID]struct{})}
}

// TryAcquire returns false when a connect attempt for the tenant is
// already in flight.
func (l *ConnLocks) TryAcquire(tenant domain.TenantID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[tenant]; ok {
		return false
	}
	l.held[tenant] = struct{}{}
	return true
}

// Release frees the tenant's lock. Releasing a lock that is not held
// is a no-op, keeping release idempotent on error paths.
func (l *ConnLocks) Release(tenant domain.TenantID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, tenant)
}

// Held reports whether a connect attempt currently owns the lock.
func (l *ConnLocks) Held(tenant domain.TenantID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[tenant]
	return ok
}

// Package runtime owns the session lifecycle: registry, connection
// locks, the per-tenant supervisor, the reconnection policy and the
// fleet controller. It orchestrates without containing command logic.
package runtime

import (
	"context"
	"sync"
	"time"

	"mini-base/contract"
	"mini-base/domain"
)

// Session owns one live protocol connection for a tenant. Exactly one
// Session may exist per tenant at any time; it is created on a
// successful connect and destroyed on logout, manual disconnect or
// unrecoverable failure.
type Session struct {
	Tenant      domain.TenantID
	Client      contract.ProtocolClient
	ConnectedAt time.Time

	cancel context.CancelFunc
}

// Detach stops the session's event pump. In-flight handler invocations
// finish on their own; they are only prevented from being invoked again.
func (s *Session) Detach() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Registry is the in-memory map of live sessions. Pure bookkeeping:
// no I/O, never blocks beyond the mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.TenantID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.TenantID]*Session)}
}

func (r *Registry) IsConnected(tenant domain.TenantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[tenant]
	return ok
}

func (r *Registry) Get(tenant domain.TenantID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[tenant]
	return session, ok
}

// Status reports connection state and uptime for one tenant.
func (r *Registry) Status(tenant domain.TenantID) domain.SessionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[tenant]
	if !ok {
		return domain.SessionStatus{Tenant: tenant, Connected: false}
	}
	return domain.SessionStatus{
		Tenant:      tenant,
		Connected:   true,
		ConnectedAt: session.ConnectedAt,
		Uptime:      time.Since(session.ConnectedAt),
	}
}

// Register installs the tenant's session. A displaced handle is
// detached so its pump cannot keep running unreachable.
func (r *Registry) Register(tenant domain.TenantID, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[tenant]; ok {
		prev.Detach()
	}
	r.sessions[tenant] = session
}

// Unregister removes and returns the tenant's session so the caller
// can detach it. The second return is false when no session was live.
func (r *Registry) Unregister(tenant domain.TenantID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[tenant]
	if ok {
		delete(r.sessions, tenant)
	}
	return session, ok
}

// Touch refreshes the connection timestamp, used when the transport
// reaches the open state.
func (r *Registry) Touch(tenant domain.TenantID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[tenant]; ok {
		session.ConnectedAt = at
	}
}

// ListActive returns the tenants with a live session.
func (r *Registry) ListActive() []domain.TenantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenants := make([]domain.TenantID, 0, len(r.sessions))
	for tenant := range r.sessions {
		tenants = append(tenants, tenant)
	}
	return tenants
}

package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-base/domain"
)

func TestRegistry_Register_Status_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	tenant := domain.TenantID("33612345678")

	// Given an empty registry
	req.False(registry.IsConnected(tenant))
	req.False(registry.Status(tenant).Connected)
	req.Empty(registry.ListActive())

	// When a session is registered
	connectedAt := time.Now().UTC().Add(-2 * time.Minute)
	registry.Register(tenant, &Session{Tenant: tenant, ConnectedAt: connectedAt})

	// Then membership and status answer from memory only
	req.True(registry.IsConnected(tenant))
	status := registry.Status(tenant)
	req.True(status.Connected)
	req.Equal(connectedAt, status.ConnectedAt)
	req.GreaterOrEqual(status.Uptime, 2*time.Minute)
	req.Equal([]domain.TenantID{tenant}, registry.ListActive())

	// When it is unregistered
	session, ok := registry.Unregister(tenant)
	req.True(ok)
	req.Equal(tenant, session.Tenant)

	// Then a second unregister reports absence
	_, ok = registry.Unregister(tenant)
	req.False(ok)
	req.False(registry.IsConnected(tenant))
}

func TestRegistry_Register_Detaches_Displaced_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	tenant := domain.TenantID("33612345678")

	// Given a registered session with a live pump context
	firstCtx, cancel := context.WithCancel(context.Background())
	first := &Session{Tenant: tenant, ConnectedAt: time.Now().UTC(), cancel: cancel}
	registry.Register(tenant, first)

	// When a second registration lands for the same tenant
	second := &Session{Tenant: tenant, ConnectedAt: time.Now().UTC()}
	registry.Register(tenant, second)

	// Then the displaced session's pump is stopped, not orphaned
	select {
	case <-firstCtx.Done():
	default:
		req.Fail("displaced session was not detached")
	}
	current, ok := registry.Get(tenant)
	req.True(ok)
	req.Same(second, current)
}

func TestRegistry_Touch_Refreshes_ConnectedAt(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	tenant := domain.TenantID("33612345678")
	registry.Register(tenant, &Session{Tenant: tenant, ConnectedAt: time.Now().UTC().Add(-time.Hour)})

	now := time.Now().UTC()
	registry.Touch(tenant, now)

	req.Equal(now, registry.Status(tenant).ConnectedAt)
}

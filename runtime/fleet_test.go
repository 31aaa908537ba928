package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-base/domain"
	"mini-base/errors"
)

func newFleetHarness(factory *fakeFactory, spacing time.Duration) (*Fleet, *harness) {
	h := newHarness(factory, 3, time.Hour, 10*time.Millisecond)
	fleet := NewFleet(testLogger(), h.registry, h.supervisor, h.policy,
		h.roster, h.credentials, h.cache, spacing)
	return fleet, h
}

func TestFleet_ConnectAll_Skips_Active_Tenants(t *testing.T) {
	req := require.New(t)
	factory := &fakeFactory{clients: []*fakeClient{newFakeClient(), newFakeClient()}}
	fleet, h := newFleetHarness(factory, 10*time.Millisecond)

	active := domain.TenantID("33611111111")
	dormant := domain.TenantID("33622222222")
	req.NoError(h.roster.Add(active))
	req.NoError(h.roster.Add(dormant))
	req.NoError(h.credentials.Save(dormant, []byte("blob")))
	h.registry.Register(active, &Session{Tenant: active, ConnectedAt: time.Now().UTC()})

	outcomes, err := fleet.ConnectAll(context.Background())
	req.NoError(err)
	req.Len(outcomes, 2)

	byTenant := make(map[domain.TenantID]FleetOutcome)
	for _, outcome := range outcomes {
		byTenant[outcome.Tenant] = outcome
	}
	req.Equal(domain.OutcomeAlreadyConnected, byTenant[active].Outcome)
	req.Equal(domain.OutcomeReconnecting, byTenant[dormant].Outcome)

	// Only the dormant tenant reached the factory
	req.Equal(1, factory.callCount())
	req.True(h.registry.IsConnected(dormant))
}

func TestFleet_Disconnect_Removes_All_Traces(t *testing.T) {
	req := require.New(t)
	client := newFakeClient()
	factory := &fakeFactory{clients: []*fakeClient{client}}
	fleet, h := newFleetHarness(factory, 10*time.Millisecond)

	tenant := domain.TenantID("33612345678")
	req.NoError(h.credentials.Save(tenant, []byte("blob")))
	req.NoError(h.roster.Add(tenant))
	h.supervisor.Connect(context.Background(), tenant, &collectSink{})
	req.True(h.registry.IsConnected(tenant))

	// When the tenant is disconnected
	req.NoError(fleet.Disconnect(context.Background(), tenant))

	// Then every trace is gone and the transport was logged out
	req.False(h.registry.IsConnected(tenant))
	req.False(h.credentials.has(tenant))
	req.False(h.roster.has(tenant))
	req.False(h.cache.has(tenant))
	req.True(client.loggedOut)

	// And an immediate second call reports not-found
	req.ErrorIs(fleet.Disconnect(context.Background(), tenant), errors.ErrNotConnected)
}

func TestFleet_Disconnect_Unknown_Tenant(t *testing.T) {
	req := require.New(t)
	fleet, _ := newFleetHarness(&fakeFactory{clients: []*fakeClient{newFakeClient()}}, 10*time.Millisecond)

	err := fleet.Disconnect(context.Background(), "336000000000")
	req.ErrorIs(err, errors.ErrNotConnected)
}

func TestFleet_Statuses_Covers_Roster_And_Live(t *testing.T) {
	req := require.New(t)
	fleet, h := newFleetHarness(&fakeFactory{clients: []*fakeClient{newFakeClient()}}, 10*time.Millisecond)

	req.NoError(h.roster.Add("33611111111"))
	h.registry.Register("33622222222", &Session{Tenant: "33622222222", ConnectedAt: time.Now().UTC()})

	statuses := fleet.Statuses()
	req.Len(statuses, 2)

	byTenant := make(map[domain.TenantID]domain.SessionStatus)
	for _, status := range statuses {
		byTenant[status.Tenant] = status
	}
	req.False(byTenant["33611111111"].Connected)
	req.True(byTenant["33622222222"].Connected)
}
